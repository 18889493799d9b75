package apphandler

// Config carries the per-process settings every Application Handler
// needs to stage and launch plugins: the sandbox roots the Plugin
// Launcher operates under, and the fixed plugin names for the three
// pipeline stages that are not picked per-metric (DoE, clustering,
// prediction — a model plugin is instead named per-metric by
// model.Metric.PredictionPlugin, since each metric may use a different
// fitting strategy).
type Config struct {
	WorkspaceRoot string
	PluginRoot    string
	ModelsRoot    string

	DoEPlugin        string
	ClusterPlugin    string
	PredictionPlugin string
}
