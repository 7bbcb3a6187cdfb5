package domain

// WaterLog holds the drink reminder times recorded for one calendar day.
type WaterLog struct {
	Date  string   `json:"tanggal"`
	Times []string `json:"riwayatJamMinum"`
}
