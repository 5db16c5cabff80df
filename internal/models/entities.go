package models

// Memory is a journal entry: the primary record of the application.
type Memory struct {
	ID       string   `json:"id"`
	UserID   string   `json:"userId"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Date     string   `json:"date"` // YYYY-MM-DD
	Location string   `json:"location,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`

	SyncMeta
}

func (m *Memory) RecordID() string      { return m.ID }
func (m *Memory) SetRecordID(id string) { m.ID = id }
func (m *Memory) OwnerID() string       { return m.UserID }
func (m *Memory) ScopeID() string       { return "" }
func (m *Memory) Meta() *SyncMeta       { return &m.SyncMeta }

// Comment is attached to a memory.
type Comment struct {
	ID       string `json:"id"`
	MemoryID string `json:"memoryId"`
	UserID   string `json:"userId"`
	Content  string `json:"content"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`

	SyncMeta
}

func (c *Comment) RecordID() string      { return c.ID }
func (c *Comment) SetRecordID(id string) { c.ID = id }
func (c *Comment) OwnerID() string       { return c.UserID }
func (c *Comment) ScopeID() string       { return c.MemoryID }
func (c *Comment) Meta() *SyncMeta       { return &c.SyncMeta }

// Reaction is a typed reaction ("heart", "smile", ...) on a memory.
// Reactions toggle: creating an identical reaction twice removes it.
type Reaction struct {
	ID       string `json:"id"`
	MemoryID string `json:"memoryId"`
	UserID   string `json:"userId"`
	Type     string `json:"type"`

	CreatedAt int64 `json:"createdAt"`

	SyncMeta
}

func (r *Reaction) RecordID() string      { return r.ID }
func (r *Reaction) SetRecordID(id string) { r.ID = id }
func (r *Reaction) OwnerID() string       { return r.UserID }
func (r *Reaction) ScopeID() string       { return r.MemoryID }
func (r *Reaction) Meta() *SyncMeta       { return &r.SyncMeta }

// FamilyMember is someone the user shares memories with.
type FamilyMember struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Relation string `json:"relation,omitempty"`
	Email    string `json:"email,omitempty"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`

	SyncMeta
}

func (f *FamilyMember) RecordID() string      { return f.ID }
func (f *FamilyMember) SetRecordID(id string) { f.ID = id }
func (f *FamilyMember) OwnerID() string       { return f.UserID }
func (f *FamilyMember) ScopeID() string       { return "" }
func (f *FamilyMember) Meta() *SyncMeta       { return &f.SyncMeta }

// Notification is server-generated activity the client caches locally.
type Notification struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Read    bool   `json:"read"`

	CreatedAt int64 `json:"createdAt"`

	SyncMeta
}

func (n *Notification) RecordID() string      { return n.ID }
func (n *Notification) SetRecordID(id string) { n.ID = id }
func (n *Notification) OwnerID() string       { return n.UserID }
func (n *Notification) ScopeID() string       { return "" }
func (n *Notification) Meta() *SyncMeta       { return &n.SyncMeta }

// Tag labels memories.
type Tag struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`

	SyncMeta
}

func (t *Tag) RecordID() string      { return t.ID }
func (t *Tag) SetRecordID(id string) { t.ID = id }
func (t *Tag) OwnerID() string       { return t.UserID }
func (t *Tag) ScopeID() string       { return "" }
func (t *Tag) Meta() *SyncMeta       { return &t.SyncMeta }

// Story is a generated narrative assembled from memories. Generation happens
// server-side; the core only caches and replays CRUD on the result.
type Story struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	MemoryIDs []string `json:"memoryIds,omitempty"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`

	SyncMeta
}

func (s *Story) RecordID() string      { return s.ID }
func (s *Story) SetRecordID(id string) { s.ID = id }
func (s *Story) OwnerID() string       { return s.UserID }
func (s *Story) ScopeID() string       { return "" }
func (s *Story) Meta() *SyncMeta       { return &s.SyncMeta }

// UserSettings is the per-user settings singleton. Its record id is the
// user id.
type UserSettings struct {
	ID            string `json:"id"`
	Theme         string `json:"theme,omitempty"`
	Language      string `json:"language,omitempty"`
	Notifications bool   `json:"notifications"`

	UpdatedAt int64 `json:"updatedAt"`

	SyncMeta
}

func (u *UserSettings) RecordID() string      { return u.ID }
func (u *UserSettings) SetRecordID(id string) { u.ID = id }
func (u *UserSettings) OwnerID() string       { return u.ID }
func (u *UserSettings) ScopeID() string       { return "" }
func (u *UserSettings) Meta() *SyncMeta       { return &u.SyncMeta }
