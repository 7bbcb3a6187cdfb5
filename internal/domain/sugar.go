package domain

import "time"

// SugarEntry is one logged food item and the sugar it contained. JSON names
// follow the mobile client's payloads.
type SugarEntry struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"-"`
	FoodName     string    `json:"namaMakanan"`
	SugarPerPack int       `json:"gulaPerBungkus"`
	PackCount    int       `json:"jumlahBungkus"`
	PackContent  *string   `json:"isiPerBungkus,omitempty"`
	TotalSugar   float64   `json:"totalGula"`
	Teaspoons    float64   `json:"sendokTeh"`
	RecordedAt   time.Time `json:"waktuInput"`
}

// SugarFilter narrows a sugar log listing. Zero values mean no bound.
// To is exclusive.
type SugarFilter struct {
	From   time.Time
	To     time.Time
	Search string
}
