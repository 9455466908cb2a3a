package schema

// Built-in dataset names.
const (
	PrimaryCompetitionData = "primary_competition_data"
	DaigtV2AdditionalData  = "daigt_v2_additional_data"
	TrainPrompts           = "train_prompts"
)

func builtinDatasets() []Dataset {
	return []Dataset{
		{
			Name: PrimaryCompetitionData,
			Columns: []Column{
				{Name: "id", Type: TypeInteger, Nullable: false, Unique: true},
				{Name: "prompt_id", Type: TypeInteger, Nullable: false},
				{Name: "text", Type: TypeText, Nullable: false, MinLength: intp(10)},
				{Name: "generated", Type: TypeInteger, Nullable: false, AllowedValues: []string{"0", "1"}},
			},
			MinRows: 1000,
		},
		{
			Name: DaigtV2AdditionalData,
			Columns: []Column{
				{Name: "id", Type: TypeText, Nullable: false, Unique: true},
				{Name: "prompt_id", Type: TypeText, Nullable: false},
				{Name: "text", Type: TypeText, Nullable: false, MinLength: intp(10)},
				{Name: "generated", Type: TypeInteger, Nullable: false, AllowedValues: []string{"0", "1"}},
				{Name: "source", Type: TypeText, Nullable: true},
			},
			MinRows: 100,
		},
		{
			Name: TrainPrompts,
			Columns: []Column{
				{Name: "prompt_id", Type: TypeInteger, Nullable: false, Unique: true},
				{Name: "prompt_name", Type: TypeText, Nullable: false},
				{Name: "instructions", Type: TypeText, Nullable: false, MinLength: intp(10)},
				{Name: "source_text", Type: TypeText, Nullable: false, MinLength: intp(10)},
			},
			MinRows: 1,
		},
	}
}

func intp(n int) *int {
	return &n
}
