package models

type DonorStats struct {
	TotalDonated       float64 `json:"totalDonated"`
	CampaignsSupported int     `json:"campaignsSupported"`
	ImpactScore        int64   `json:"impactScore"`
	TotalDonations     int     `json:"totalDonations"`
}

type NGOStats struct {
	TotalRaised     float64 `json:"totalRaised"`
	ActiveCampaigns int     `json:"activeCampaigns"`
	TotalDonors     int     `json:"totalDonors"`
	TotalCampaigns  int     `json:"totalCampaigns"`
}

type AdminStats struct {
	TotalDonations       float64 `json:"totalDonations"`
	TotalCampaigns       int64   `json:"totalCampaigns"`
	TotalNGOs            int64   `json:"totalNGOs"`
	PendingVerifications int64   `json:"pendingVerifications"`
	ActiveCampaigns      int64   `json:"activeCampaigns"`
	TotalDonors          int64   `json:"totalDonors"`
}

// ImpactPointValue is the amount donated per impact score point.
const ImpactPointValue = 10
