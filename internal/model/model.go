package model

import "time"

type Role string

const (
	RoleMember Role = ""
	RoleAdmin  Role = "admin"
)

type Account struct {
	Username    string    `json:"username"`
	Password    string    `json:"password"`
	Avatar      string    `json:"avatar"`
	Mood        string    `json:"mood,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Role        Role      `json:"role,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Display returns the name shown for the account.
func (a Account) Display() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type Community struct {
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"createdAt"`
	Mods        []string  `json:"mods"`
	Members     []string  `json:"members"`
	Verified    bool      `json:"verified"`
}

func (c Community) HasMember(username string) bool {
	return contains(c.Members, username)
}

func (c Community) HasMod(username string) bool {
	return contains(c.Mods, username)
}

type Comment struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Avatar    string    `json:"avatar"`
	Mood      string    `json:"mood,omitempty"`
	Text      string    `json:"text"`
	Time      time.Time `json:"time"`
	Score     int       `json:"score"`
	Community string    `json:"community"`
}

type ReportAction string

const (
	ActionNone   ReportAction = ""
	ActionBan    ReportAction = "ban"
	ActionWarn   ReportAction = "warn"
	ActionIgnore ReportAction = "ignore"
)

type Report struct {
	ID       string       `json:"id"`
	Target   string       `json:"target"`
	Reporter string       `json:"reporter"`
	Reason   string       `json:"reason"`
	Time     time.Time    `json:"time"`
	Resolved bool         `json:"resolved"`
	Action   ReportAction `json:"action,omitempty"`
}

// Ban is a restriction on authenticating. A nil Until means permanent.
type Ban struct {
	Until *time.Time `json:"until"`
}

func (b Ban) Permanent() bool {
	return b.Until == nil
}

// ActiveAt reports whether the ban blocks authentication at now.
func (b Ban) ActiveAt(now time.Time) bool {
	return b.Until == nil || b.Until.After(now)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
