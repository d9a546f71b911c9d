package card

// Skill is a card's single named ability text.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Abilities holds the five stat values every card carries.
type Abilities struct {
	Intellect int `json:"intellect"`
	Might     int `json:"might"`
	Politics  int `json:"politics"`
	Charisma  int `json:"charisma"`
	Command   int `json:"command"`
}

// Card is one drafted character. The catalog is loaded once at startup and
// treated as immutable afterwards; cards are matched by Name during drafting.
type Card struct {
	UID         string    `json:"uid"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Era         string    `json:"era"`
	Region      string    `json:"region"`
	Cost        int       `json:"cost"`
	RarityValue int       `json:"rarityValue"`
	Rarity      string    `json:"rarity"`
	Class       string    `json:"class"`
	Identity    string    `json:"identity"`
	Description string    `json:"description"`
	Skill       Skill     `json:"skill"`
	Abilities   Abilities `json:"abilities"`
	Tags        []string  `json:"tags,omitempty"`
}
