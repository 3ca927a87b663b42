package model

type ContributionDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// StageResult records whether one analytics stage succeeded or degraded.
type StageResult struct {
	Stage    string `json:"stage"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

type ProfileSummary struct {
	Username           string        `json:"username"`
	URL                string        `json:"url"`
	Repos              int           `json:"repos"`
	TotalContributions int           `json:"totalContributions"`
	Commits            int           `json:"commits"`
	Issues             int           `json:"issues"`
	PullRequests       int           `json:"pullRequests"`
	Reviews            int           `json:"reviews"`
	CurrentStreak      int           `json:"currentStreak"`
	LongestStreak      int           `json:"longestStreak"`
	ActiveDays         int           `json:"activeDays"`
	IsExact            bool          `json:"isExact"`
	Stages             []StageResult `json:"stages,omitempty"`
}

func (p *ProfileSummary) Degraded() bool {
	for _, st := range p.Stages {
		if st.Degraded {
			return true
		}
	}
	return false
}
