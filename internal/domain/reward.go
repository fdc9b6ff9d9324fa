package domain

import "time"

type RedeemableCode struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Reward      int64     `json:"reward"`
	MaxUses     int       `json:"maxUses"`
	CurrentUses int       `json:"currentUses"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (c *RedeemableCode) Exhausted() bool {
	return c.CurrentUses >= c.MaxUses
}

type CodeUsage struct {
	CodeID int64     `json:"codeId"`
	UserID int64     `json:"userId"`
	UsedAt time.Time `json:"usedAt"`
}

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Reward      int64     `json:"reward"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

type TaskCompletion struct {
	TaskID      int64     `json:"taskId"`
	UserID      int64     `json:"userId"`
	CompletedAt time.Time `json:"completedAt"`
}
