package campaign

// Progress is published after every generation state change of a campaign.
type Progress struct {
	CampaignID      uint   `json:"campaign_id"`
	Status          string `json:"status"`
	Stage           string `json:"stage,omitempty"`
	PercentComplete int    `json:"percent_complete"`
	Error           string `json:"error,omitempty"`
}
