package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tablePrincipals = "principals"
	tableProfiles   = "learner_profiles"
	tableMatters    = "matters"
	tableSummaries  = "conversation_summaries"
	tableLLMEvents  = "llm_request_events"
)

var (
	principalsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "username", Type: field.TypeString, Unique: true},
		{Name: "first_name", Type: field.TypeString, Default: ""},
		{Name: "role", Type: field.TypeString, Default: RoleStudent},
		{Name: "created_at", Type: field.TypeTime},
	}
	principalsTable = &schema.Table{
		Name:       tablePrincipals,
		Columns:    principalsColumns,
		PrimaryKey: []*schema.Column{principalsColumns[0]},
	}

	profilesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "principal_id", Type: field.TypeInt, Unique: true},
		{Name: "class_level", Type: field.TypeString, Nullable: true},
		{Name: "level", Type: field.TypeString, Default: LevelBeginner},
		{Name: "learning_style", Type: field.TypeString, Default: StyleMixed},
		{Name: "diagnostic_completed", Type: field.TypeBool, Default: false},
		{Name: "diagnostic_date", Type: field.TypeTime, Nullable: true},
		{Name: "pending_questions", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	profilesTable = &schema.Table{
		Name:       tableProfiles,
		Columns:    profilesColumns,
		PrimaryKey: []*schema.Column{profilesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "learner_profiles_principals_profile",
				Columns:    []*schema.Column{profilesColumns[1]},
				RefColumns: []*schema.Column{principalsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
	}

	mattersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "principal_id", Type: field.TypeInt},
		{Name: "subject", Type: field.TypeString},
		{Name: "chapter", Type: field.TypeString, Default: ""},
		{Name: "objective", Type: field.TypeString, Nullable: true},
		{Name: "difficulty", Type: field.TypeString, Default: DifficultyMedium},
		{Name: "progression", Type: field.TypeFloat64, Default: 0.0},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	mattersTable = &schema.Table{
		Name:       tableMatters,
		Columns:    mattersColumns,
		PrimaryKey: []*schema.Column{mattersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "matters_principals_matters",
				Columns:    []*schema.Column{mattersColumns[1]},
				RefColumns: []*schema.Column{principalsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "matter_principal_id_subject_chapter",
				Unique:  true,
				Columns: []*schema.Column{mattersColumns[1], mattersColumns[2], mattersColumns[3]},
			},
		},
	}

	summariesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "principal_id", Type: field.TypeInt},
		{Name: "matter_id", Type: field.TypeInt},
		{Name: "summary_text", Type: field.TypeString, Size: 2147483647},
		{Name: "key_concepts", Type: field.TypeJSON},
		{Name: "document_id", Type: field.TypeString, Nullable: true},
		{Name: "conversation_date", Type: field.TypeTime},
		{Name: "created_at", Type: field.TypeTime},
	}
	summariesTable = &schema.Table{
		Name:       tableSummaries,
		Columns:    summariesColumns,
		PrimaryKey: []*schema.Column{summariesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "conversation_summaries_principals_summaries",
				Columns:    []*schema.Column{summariesColumns[1]},
				RefColumns: []*schema.Column{principalsColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "conversation_summaries_matters_summaries",
				Columns:    []*schema.Column{summariesColumns[2]},
				RefColumns: []*schema.Column{mattersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "summary_principal_id_created_at",
				Columns: []*schema.Column{summariesColumns[1], summariesColumns[7]},
			},
		},
	}

	llmEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
	}
	llmEventsTable = &schema.Table{
		Name:       tableLLMEvents,
		Columns:    llmEventsColumns,
		PrimaryKey: []*schema.Column{llmEventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "llmrequestevent_purpose",
				Columns: []*schema.Column{llmEventsColumns[4]},
			},
		},
	}

	// tables lists every table in migration order.
	tables = []*schema.Table{
		principalsTable,
		profilesTable,
		mattersTable,
		summariesTable,
		llmEventsTable,
	}
)

func init() {
	profilesTable.ForeignKeys[0].RefTable = principalsTable
	mattersTable.ForeignKeys[0].RefTable = principalsTable
	summariesTable.ForeignKeys[0].RefTable = principalsTable
	summariesTable.ForeignKeys[1].RefTable = mattersTable
}
