package card

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// LoadCatalog reads the card catalog JSON at path and returns the validated,
// deduplicated card list. A record missing required fields aborts the load;
// duplicate UIDs or names are skipped with a log line, keeping the first
// occurrence.
func LoadCatalog(path string, log *zap.Logger) ([]Card, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var records []Card
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	uids := make(map[string]bool, len(records))
	names := make(map[string]bool, len(records))
	cards := make([]Card, 0, len(records))
	for i, c := range records {
		if err := validate(c); err != nil {
			return nil, fmt.Errorf("catalog record %d: %w", i, err)
		}
		if uids[c.UID] {
			log.Warn("duplicate card uid, skipping", zap.String("uid", c.UID))
			continue
		}
		if names[c.Name] {
			log.Warn("duplicate card name, skipping", zap.String("name", c.Name))
			continue
		}
		uids[c.UID] = true
		names[c.Name] = true
		cards = append(cards, c)
	}
	return cards, nil
}

func validate(c Card) error {
	switch {
	case c.UID == "":
		return fmt.Errorf("missing uid")
	case c.ID == "":
		return fmt.Errorf("missing id")
	case c.Name == "":
		return fmt.Errorf("missing name")
	}
	return nil
}
