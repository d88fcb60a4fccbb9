package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ActorSummary describes how the winning program for one actor was found.
type ActorSummary struct {
	Actor       string  `json:"actor"`
	Path        string  `json:"path"`
	Scenarios   int     `json:"scenarios"`
	Generations int     `json:"generations"`
	Converged   bool    `json:"converged"`
	BestFitness float64 `json:"best_fitness"`
	FinalSize   int     `json:"final_size"`
}

type RunRecord struct {
	VersionedRecord
	ID           string         `json:"id"`
	CreatedAtUTC string         `json:"created_at_utc"`
	Seed         int64          `json:"seed"`
	Actors       []ActorSummary `json:"actors"`
	Output       Output         `json:"output"`
}

// GenerationDiagnostics summarizes one evaluated generation of one phase of
// an actor's search. Phase is a scenario id for per-scenario searches and
// "_all" for the final search over every scenario.
type GenerationDiagnostics struct {
	Actor         string  `json:"actor" csv:"actor"`
	Phase         string  `json:"phase" csv:"phase"`
	Generation    int     `json:"generation" csv:"generation"`
	Population    int     `json:"population" csv:"population"`
	BestFitness   float64 `json:"best_fitness" csv:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness" csv:"mean_fitness"`
	StdDevFitness float64 `json:"stddev_fitness" csv:"stddev_fitness"`
	MeanSize      float64 `json:"mean_size" csv:"mean_size"`
	Diversity     int     `json:"diversity" csv:"diversity"`
}

type TopEntityRecord struct {
	VersionedRecord
	Actor       string  `json:"actor"`
	Rank        int     `json:"rank"`
	Fitness     float64 `json:"fitness"`
	Fingerprint string  `json:"fingerprint"`
	Entity      Tree    `json:"entity"`
}

// LineageRecord ties an offspring to the parents it was bred from.
type LineageRecord struct {
	Actor       string   `json:"actor,omitempty"`
	Phase       string   `json:"phase,omitempty"`
	EntityID    string   `json:"entity_id"`
	ParentIDs   []string `json:"parent_ids"`
	Generation  int      `json:"generation"`
	Operation   string   `json:"operation"`
	Fingerprint string   `json:"fingerprint"`
}
