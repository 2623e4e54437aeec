// Package domain defines the core entities shared across the agent
// runtime kernel: sessions, messages, knowledge chunks, tools, cron
// jobs, and tasks. These are plain data structs; behavior lives in the
// packages that own each entity (store, sessionscheduler, toolregistry,
// cronmgr).
package domain

import "time"

// Role identifies who produced a transcript Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Session is one per chat. ChatID is the unique external key; ID is
// the opaque internal identifier.
type Session struct {
	ID            string
	ChatID        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	MessageCount  int
	ContextTokens int
	Model         string
	Provider      string
	LastResetDate string // YYYY-MM-DD, UTC
	Summary       string
}

// Message is a transcript entry belonging to a Session via ChatID.
type Message struct {
	ID            string
	ChatID        string
	Sender        string
	Role          Role
	Text          string
	ToolCalls     string // serialized JSON, optional
	ToolResultFor string // tool_call id this message answers, optional
	Timestamp     time.Time
}

// KnowledgeSource identifies where a KnowledgeChunk originated.
type KnowledgeSource string

const (
	KnowledgeSourceMemory  KnowledgeSource = "memory"
	KnowledgeSourceSession KnowledgeSource = "session"
	KnowledgeSourceLearned KnowledgeSource = "learned"
)

// KnowledgeChunk is a unit of ingested, retrievable knowledge.
type KnowledgeChunk struct {
	ID        string
	Source    KnowledgeSource
	Path      string
	Text      string
	Embedding []float32
	Hash      string
	StartLine int
	EndLine   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmbeddingCacheEntry caches a computed embedding keyed by content hash,
// model, and provider so the same text is never re-embedded.
type EmbeddingCacheEntry struct {
	Hash       string
	Model      string
	Provider   string
	Embedding  []float32
	Dims       int
	CreatedAt  time.Time
	AccessedAt time.Time
}

// ToolCategory distinguishes tools that only read data from tools that
// take an action with side effects.
type ToolCategory string

const (
	ToolCategoryDataBearing ToolCategory = "data-bearing"
	ToolCategoryAction      ToolCategory = "action"
)

// ToolScope controls which callers may invoke a tool.
type ToolScope string

const (
	ScopeAlways     ToolScope = "always"
	ScopeDMOnly     ToolScope = "dm-only"
	ScopeGroupOnly  ToolScope = "group-only"
	ScopeAdminOnly  ToolScope = "admin-only"
)

// ToolDefinition describes a tool in the catalog. The executor is held
// separately by the ToolRegistry since executors cannot be persisted.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema []byte // raw JSON schema
	Category         ToolCategory
	Module           string
	Scope            ToolScope
}

// ToolConfig is a persisted override row for a tool's enabled state and
// scope, applied at dispatch time over the static registry.
type ToolConfig struct {
	ToolName  string
	Enabled   bool
	Scope     *ToolScope
	UpdatedAt time.Time
	UpdatedBy string
}

// ModulePermissionLevel controls a module's visibility within a chat.
type ModulePermissionLevel string

const (
	ModuleOpen     ModulePermissionLevel = "open"
	ModuleAdmin    ModulePermissionLevel = "admin"
	ModuleDisabled ModulePermissionLevel = "disabled"
)

// GroupModulePermission overrides a module's visibility for one chat.
type GroupModulePermission struct {
	ChatID string
	Module string
	Level  ModulePermissionLevel
}

// ReservedOpenModules are always visible regardless of GroupModulePermission.
var ReservedOpenModules = map[string]bool{
	"core":   true,
	"status": true,
}

// CronJob is a persisted interval job. The callback is not persisted;
// only the scheduling metadata survives restarts.
type CronJob struct {
	ID         string
	IntervalMs int64
	RunMissed  bool
	LastRunAt  *time.Time
}

// TaskStatus is the lifecycle state of a durable Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Task is a durable work item, optionally depending on other tasks.
type Task struct {
	ID            string
	Description   string
	Status        TaskStatus
	Priority      int
	CreatedBy     string
	ScheduledFor  *time.Time
	Payload       string
	Result        string
	Error         string
	DependsOn     []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DispatchContext carries caller identity for scope checks and tool
// invocation. It is passed from SessionScheduler/AgentRuntime through
// to ToolRegistry.Invoke.
type DispatchContext struct {
	ChatID   string
	IsGroup  bool
	IsAdmin  bool
	SenderID string
}
