package db

type Run struct {
	RunID       string `gorm:"column:run_id;primaryKey"`
	Command     string `gorm:"column:command;not null;default:''"`
	Workdir     string `gorm:"column:workdir;not null;default:''"`
	Status      string `gorm:"column:status;not null;default:'running'"`
	ExitCode    int    `gorm:"column:exit_code;not null;default:0"`
	StartedAt   int64  `gorm:"column:started_at;not null;default:0"`
	CompletedAt int64  `gorm:"column:completed_at;not null;default:0"`
}

func (Run) TableName() string { return "runs" }

type Attempt struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	RunID       string `gorm:"column:run_id;not null;index"`
	Strategy    string `gorm:"column:strategy;not null"`
	ExitCode    int    `gorm:"column:exit_code;not null;default:0"`
	ErrorKind   string `gorm:"column:error_kind;not null;default:''"`
	TimedOut    bool   `gorm:"column:timed_out;not null;default:false"`
	StartedAt   int64  `gorm:"column:started_at;not null;default:0"`
	CompletedAt int64  `gorm:"column:completed_at;not null;default:0"`
}

func (Attempt) TableName() string { return "attempts" }

type PromptEvent struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      string `gorm:"column:run_id;not null;index"`
	Strategy   string `gorm:"column:strategy;not null"`
	RuleTag    string `gorm:"column:rule_tag;not null"`
	BufferTail string `gorm:"column:buffer_tail;not null;default:''"`
	CreatedAt  int64  `gorm:"column:created_at;not null;default:0"`
}

func (PromptEvent) TableName() string { return "prompt_events" }
