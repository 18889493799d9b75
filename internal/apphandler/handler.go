// Package apphandler implements the Application Handler of §4.2: the
// per-application state machine that carries one application from
// "clueless" to "serving predictions", dispatches design-of-experiments
// rows round-robin, and recovers from a restart using whatever the
// Filesystem Handler has on disk.
package apphandler

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/launcher"
	"github.com/teranos/agora/internal/logging"
	"github.com/teranos/agora/internal/model"
	"github.com/teranos/agora/internal/storage"
)

// Sender is the narrow slice of RemoteHandler a handler needs: publish
// only, never receive — messages reach a Handler through the
// Application Manager's Dispatch, not by polling the remote handler
// itself.
type Sender interface {
	SendMessage(topic, payload string) error
}

// Handler is one Application Handler. Plugin launches and waits, and
// most storage loads and stores, run with app_mutex released, and the
// lock is reacquired to commit the resulting transition. Some I/O does
// run under the lock: ProcessObservation persists the updated doe,
// recovery checks for model artifacts, and configurations and
// predictions sent to a single client are published, all while
// app_mutex is held.
type Handler struct {
	id  appid.ID
	cfg Config

	storage *storage.Handler
	remote  Sender
	log     *logging.Logger

	mu                                sync.Mutex
	status                            model.Status
	description                       model.Description
	doe                               *model.DoEModel
	totalConfigurations               int
	cluster                           *model.ClusterModel
	prediction                        *model.PredictionModel
	activeClients                     map[string]struct{}
	assigned                          map[string]string // client id -> configuration id currently explored
	iterationNumber                   int
	numConfigurationsPerIteration     int
	numConfigurationsSentPerIteration int

	doeLauncher        *launcher.Launcher
	clusterLauncher    *launcher.Launcher
	predictionLauncher *launcher.Launcher
	modelLaunchers     map[string]*launcher.Launcher
}

// New constructs a Handler for id, starting CLUELESS. Recover should be
// called once before the handler is exposed to dispatch, matching the
// Manager's "first reference after restart triggers RECOVERING".
func New(id appid.ID, cfg Config, st *storage.Handler, remote Sender, log *logging.Logger) *Handler {
	named := log.Named("apphandler")
	return &Handler{
		id:                 id,
		cfg:                cfg,
		storage:            st,
		remote:             remote,
		log:                named,
		status:             model.Clueless,
		activeClients:      make(map[string]struct{}),
		assigned:           make(map[string]string),
		doeLauncher:        launcher.New(cfg.WorkspaceRoot, cfg.PluginRoot, named),
		clusterLauncher:    launcher.New(cfg.WorkspaceRoot, cfg.PluginRoot, named),
		predictionLauncher: launcher.New(cfg.WorkspaceRoot, cfg.PluginRoot, named),
		modelLaunchers:     make(map[string]*launcher.Launcher),
	}
}

// Status returns a snapshot of the current bitmask, used by tests and
// by the Manager's idle-handler eviction policy.
func (h *Handler) Status() model.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handler) snapshotClientsLocked() []string {
	out := make([]string, 0, len(h.activeClients))
	for c := range h.activeClients {
		out = append(out, c)
	}
	return out
}

// Recover implements §4.2's recovery path: the Manager's first
// reference to this application loads description, doe, cluster,
// per-metric models and prediction, in that order, and resumes at the
// first idle state consistent with what loaded. A no-op once the
// handler has left CLUELESS.
func (h *Handler) Recover(ctx context.Context) {
	h.mu.Lock()
	if h.status != model.Clueless {
		h.mu.Unlock()
		return
	}
	h.status = model.Recovering
	h.mu.Unlock()

	rs, err := h.storage.LoadRecoveryState(h.id)
	if err != nil {
		h.log.Warnw("recovery load failed, starting clueless", "app", h.id.String(), "error", err)
		h.mu.Lock()
		h.status = model.Clueless
		h.mu.Unlock()
		return
	}

	hasFeatures := rs.Description.HasFeatures()
	if err := rs.Validate(hasFeatures); err != nil {
		h.log.Warnw("inconsistent storage on recovery, erasing application", "app", h.id.String(), "error", err)
		if eraseErr := h.storage.EraseApplication(h.id); eraseErr != nil {
			h.log.Warnw("failed to erase inconsistent application state", "app", h.id.String(), "error", eraseErr)
		}
		h.mu.Lock()
		h.status = model.Clueless
		h.mu.Unlock()
		return
	}

	hasDescription := len(rs.Description.Knobs) > 0 && len(rs.Description.Metrics) > 0
	if !hasDescription {
		h.mu.Lock()
		h.status = model.Clueless
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	h.description = rs.Description
	h.doe = rs.DoE
	h.totalConfigurations = rs.TotalConfigurations
	h.cluster = rs.Cluster
	h.prediction = rs.Prediction
	h.numConfigurationsPerIteration = rs.TotalConfigurations
	h.numConfigurationsSentPerIteration = rs.TotalConfigurations - h.doe.Len()
	h.status = model.WithInformation

	if !rs.Prediction.Empty() {
		h.status |= model.WithPrediction
		if hasFeatures {
			h.status |= model.WithCluster
		}
		if h.allModelsValidLocked() {
			h.status |= model.WithModel
		}
		h.log.Infow("recovered with prediction", "app", h.id.String())
		h.mu.Unlock()
		return
	}

	if h.allModelsValidLocked() {
		h.status |= model.WithModel
		if hasFeatures && !rs.Cluster.Empty() {
			h.status |= model.WithCluster
		}
		clusterReady := !hasFeatures || h.status.Has(model.WithCluster)
		h.mu.Unlock()
		if clusterReady {
			h.log.Infow("recovered with models, relaunching prediction", "app", h.id.String())
			h.mu.Lock()
			h.status |= model.BuildingPrediction
			h.mu.Unlock()
			h.launchPrediction(ctx)
		} else {
			h.log.Infow("recovered with models, awaiting cluster", "app", h.id.String())
			h.mu.Lock()
			h.status |= model.BuildingCluster
			h.mu.Unlock()
			h.launchCluster(ctx)
		}
		return
	}

	if rs.TotalConfigurations > 0 && !rs.DoE.Empty() {
		h.status |= model.WithDoE | model.Exploring
		needCluster := hasFeatures && rs.Cluster.Empty()
		if hasFeatures && !rs.Cluster.Empty() {
			h.status |= model.WithCluster
		}
		h.log.Infow("recovered mid-exploration", "app", h.id.String(), "remaining_rows", h.doe.Len())
		h.mu.Unlock()
		if needCluster {
			h.mu.Lock()
			h.status |= model.BuildingCluster
			h.mu.Unlock()
			h.launchCluster(ctx)
		}
		return
	}

	if rs.TotalConfigurations > 0 {
		// doe exhausted, no valid models yet: resume at model-building.
		h.status |= model.WithDoE | model.BuildingModel
		h.log.Infow("recovered with exhausted doe, rebuilding models", "app", h.id.String())
		h.mu.Unlock()
		h.launchModels(ctx)
		return
	}

	// description present, doe never ran.
	h.status |= model.BuildingDoE
	h.log.Infow("recovered with description only, relaunching doe", "app", h.id.String())
	h.mu.Unlock()
	h.runDoE(ctx)
}

func (h *Handler) allModelsValidLocked() bool {
	for _, m := range h.description.Metrics {
		ok, err := h.storage.ModelArtifact.Exists(h.id, m.Name)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// WelcomeClient implements §4.2's welcome_client: register cid, bootstrap
// the application from its first description, or bring a later client
// up to speed on whatever the handler already has.
func (h *Handler) WelcomeClient(ctx context.Context, cid, infoPayload string) {
	h.mu.Lock()
	h.activeClients[cid] = struct{}{}
	status := h.status
	h.mu.Unlock()

	if status == model.Clueless {
		h.bootstrap(ctx, cid, infoPayload)
		return
	}

	if infoPayload != "" {
		if desc, err := parseDescription(infoPayload); err == nil {
			h.mu.Lock()
			mismatch := !h.description.Equal(desc)
			h.mu.Unlock()
			if mismatch {
				h.log.Warnw("description mismatch from client, ignoring", "app", h.id.String(), "client", cid)
			}
		}
	}

	h.mu.Lock()
	if h.status == model.WithInformation {
		// a plugin failure regressed the handler: re-launch the DoE plugin.
		h.status |= model.BuildingDoE
		h.mu.Unlock()
		h.log.Infow("relaunching doe plugin", "app", h.id.String(), "client", cid)
		h.runDoE(ctx)
		return
	}
	switch {
	case h.status.Has(model.Exploring):
		h.sendNextConfigurationLocked(cid)
	case h.status.Has(model.WithPrediction):
		h.sendPredictionLocked(cid)
	}
	h.mu.Unlock()
}

// bootstrap runs only from CLUELESS: parse the first client's
// description, persist it, and launch the DoE plugin. Failure aborts
// the triggering client without changing state (§4.2's contract).
func (h *Handler) bootstrap(ctx context.Context, cid, infoPayload string) {
	description, err := parseDescription(infoPayload)
	if err != nil || len(description.Knobs) == 0 || len(description.Metrics) == 0 {
		h.log.Warnw("failed to parse client description, aborting client", "app", h.id.String(), "client", cid, "error", err)
		h.sendAbort(cid)
		return
	}

	if err := h.storage.Description.Store(h.id, description); err != nil {
		h.log.Warnw("failed to persist description", "app", h.id.String(), "error", err)
	}

	h.mu.Lock()
	h.description = description
	h.status = model.WithInformation | model.BuildingDoE
	h.mu.Unlock()

	h.log.Infow("description received, launching doe plugin", "app", h.id.String())
	h.runDoE(ctx)
}

// ProcessInfo implements the legacy info protocol: equivalent to
// welcome's description payload, accepted only while the handler has
// not yet built a description (§4.2's ASKING_FOR_INFORMATION gate in the
// original implementation).
func (h *Handler) ProcessInfo(ctx context.Context, cid, payload string) {
	h.mu.Lock()
	h.activeClients[cid] = struct{}{}
	status := h.status
	h.mu.Unlock()

	if status != model.Clueless {
		return
	}
	h.bootstrap(ctx, cid, payload)
}

// runDoE stages and launches the DoE plugin, then reloads the produced
// rows from storage and starts dispatching them round-robin.
func (h *Handler) runDoE(ctx context.Context) {
	if err := h.doeLauncher.InitializeWorkspace(h.id, h.cfg.DoEPlugin); err != nil {
		h.log.Warnw("failed to stage doe plugin", "app", h.id.String(), "error", err)
		h.abortActiveClients()
		h.regressToInformation()
		return
	}

	pid, err := h.doeLauncher.Launch(ctx, h.doeEnv())
	if err != nil {
		h.log.Warnw("failed to launch doe plugin", "app", h.id.String(), "error", err)
		h.abortActiveClients()
		h.regressToInformation()
		return
	}

	if err := h.doeLauncher.Wait(pid); err != nil {
		h.log.Warnw("doe plugin failed", "app", h.id.String(), "error", err)
		h.abortActiveClients()
		h.regressToInformation()
		return
	}

	doe, total, err := h.storage.DoE.Load(h.id)
	if err != nil {
		h.log.Warnw("failed to load doe after plugin completion", "app", h.id.String(), "error", err)
		doe = model.NewDoEModel()
	}

	h.mu.Lock()
	h.doe = doe
	h.totalConfigurations = total
	h.numConfigurationsPerIteration = total
	h.numConfigurationsSentPerIteration = 0
	h.status = (h.status &^ model.BuildingDoE) | model.WithDoE | model.Exploring
	clients := h.snapshotClientsLocked()
	hasFeatures := h.description.HasFeatures()
	h.mu.Unlock()

	h.log.Infow("doe ready, starting exploration", "app", h.id.String(), "rows", doe.Len(), "total", total)
	for _, c := range clients {
		h.dispatchNext(c)
	}

	if hasFeatures {
		h.mu.Lock()
		h.status |= model.BuildingCluster
		h.mu.Unlock()
		h.launchCluster(ctx)
	}
}

func (h *Handler) dispatchNext(cid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendNextConfigurationLocked(cid)
}

// sendNextConfigurationLocked hands cid the row under the round-robin
// cursor and advances it, per §4.2's "round-robin dispatch" — called
// with app_mutex held.
func (h *Handler) sendNextConfigurationLocked(cid string) {
	if h.doe == nil || h.doe.Empty() {
		return
	}
	if h.numConfigurationsSentPerIteration >= h.numConfigurationsPerIteration {
		return
	}
	row, ok := h.doe.Next()
	if !ok {
		return
	}

	payload, err := json.Marshal(row.Configuration)
	if err != nil {
		h.log.Warnw("failed to encode configuration", "app", h.id.String(), "error", err)
		return
	}

	topic := "margot/" + h.id.String() + "/" + cid + "/explore"
	if err := h.remote.SendMessage(topic, string(payload)); err != nil {
		h.log.Warnw("failed to send configuration", "app", h.id.String(), "client", cid, "error", err)
		return
	}

	h.assigned[cid] = row.ConfigurationID
	h.numConfigurationsSentPerIteration++
	h.doe.Advance()
}

// ProcessObservation implements §4.2's process_observation: persist the
// trace regardless of state, then — if exploring and the observation
// matches the client's assigned configuration — advance the doe cursor
// and either hand out the next configuration or, once exhausted, start
// building models.
func (h *Handler) ProcessObservation(ctx context.Context, cid, payload string) {
	h.mu.Lock()
	featuresDeclared := h.description.HasFeatures()
	h.mu.Unlock()

	obs, err := parseObservation(cid, payload, featuresDeclared)
	if err != nil {
		h.log.Warnw("malformed observation dropped", "app", h.id.String(), "client", cid, "error", err)
		return
	}

	if err := h.storage.Observation.Append(h.id, obs); err != nil {
		h.log.Warnw("failed to persist observation", "app", h.id.String(), "error", err)
	}

	h.mu.Lock()
	if !h.status.Has(model.Exploring) {
		h.mu.Unlock()
		return
	}

	assignedID, ok := h.assigned[cid]
	if !ok || h.doe == nil {
		h.mu.Unlock()
		return
	}
	row, found := h.doe.Lookup(obs.Configuration)
	if !found || row.ConfigurationID != assignedID {
		h.mu.Unlock()
		return
	}

	if err := h.doe.UpdateConfig(assignedID); err != nil {
		h.log.Warnw("failed to update doe entry", "app", h.id.String(), "error", err)
	}
	delete(h.assigned, cid)

	if err := h.storage.DoE.Store(h.id, h.doe, h.totalConfigurations); err != nil {
		h.log.Warnw("failed to persist doe update", "app", h.id.String(), "error", err)
	}

	exhausted := h.doe.Empty()
	if exhausted {
		h.status = (h.status &^ model.Exploring) | model.BuildingModel
	}
	h.mu.Unlock()

	if exhausted {
		h.log.Infow("doe exhausted, building models", "app", h.id.String())
		h.launchModels(ctx)
		return
	}

	h.dispatchNext(cid)
}

// ByeClient implements §4.2's bye_client.
func (h *Handler) ByeClient(cid string) {
	h.mu.Lock()
	delete(h.activeClients, cid)
	delete(h.assigned, cid)
	h.mu.Unlock()
	h.log.Infow("client left", "app", h.id.String(), "client", cid)
}

// launchModels builds one model per declared metric, each metric's
// plugin running independently (the source's per-metric model_launchers
// map), and moves on to clustering/prediction gating once every model
// succeeds.
func (h *Handler) launchModels(ctx context.Context) {
	h.mu.Lock()
	metrics := make([]model.Metric, len(h.description.Metrics))
	copy(metrics, h.description.Metrics)
	iteration := h.iterationNumber
	h.mu.Unlock()

	var wg sync.WaitGroup
	var failed int32
	for _, metric := range metrics {
		wg.Add(1)
		go func(metric model.Metric) {
			defer wg.Done()
			if err := h.runModelPlugin(ctx, metric, iteration); err != nil {
				atomic.StoreInt32(&failed, 1)
			}
		}(metric)
	}
	wg.Wait()

	if atomic.LoadInt32(&failed) != 0 {
		h.abortActiveClients()
		h.regressToInformation()
		return
	}

	h.mu.Lock()
	h.status = (h.status &^ model.BuildingModel) | model.WithModel
	h.iterationNumber++
	h.mu.Unlock()

	h.log.Infow("models ready", "app", h.id.String())
	h.maybeBuildPrediction(ctx)
}

func (h *Handler) modelLauncherFor(metric string) *launcher.Launcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.modelLaunchers[metric]
	if !ok {
		l = launcher.New(h.cfg.WorkspaceRoot, h.cfg.PluginRoot, h.log)
		h.modelLaunchers[metric] = l
	}
	return l
}

func (h *Handler) runModelPlugin(ctx context.Context, metric model.Metric, iteration int) error {
	l := h.modelLauncherFor(metric.Name)

	if err := h.storage.ModelArtifact.EnsureDir(h.id, metric.Name); err != nil {
		h.log.Warnw("failed to prepare model directory", "app", h.id.String(), "metric", metric.Name, "error", err)
		return err
	}
	if err := l.InitializeWorkspace(h.id, metric.PredictionPlugin); err != nil {
		h.log.Warnw("failed to stage model plugin", "app", h.id.String(), "metric", metric.Name, "error", err)
		return err
	}

	pid, err := l.Launch(ctx, h.modelEnv(metric.Name, iteration))
	if err != nil {
		h.log.Warnw("failed to launch model plugin", "app", h.id.String(), "metric", metric.Name, "error", err)
		return err
	}
	if err := l.Wait(pid); err != nil {
		h.log.Warnw("model plugin failed", "app", h.id.String(), "metric", metric.Name, "error", err)
		return err
	}
	return nil
}

// launchCluster builds feature centroids. It runs independently of
// model-building (§4.2: "in parallel or sequentially ... both valid")
// and feeds the same prediction gate.
func (h *Handler) launchCluster(ctx context.Context) {
	if err := h.clusterLauncher.InitializeWorkspace(h.id, h.cfg.ClusterPlugin); err != nil {
		h.log.Warnw("failed to stage cluster plugin", "app", h.id.String(), "error", err)
		h.clearBuildingBit(model.BuildingCluster)
		return
	}

	pid, err := h.clusterLauncher.Launch(ctx, h.clusterEnv())
	if err != nil {
		h.log.Warnw("failed to launch cluster plugin", "app", h.id.String(), "error", err)
		h.clearBuildingBit(model.BuildingCluster)
		return
	}
	if err := h.clusterLauncher.Wait(pid); err != nil {
		h.log.Warnw("cluster plugin failed", "app", h.id.String(), "error", err)
		h.clearBuildingBit(model.BuildingCluster)
		return
	}

	cluster, err := h.storage.Cluster.Load(h.id)
	if err != nil {
		h.log.Warnw("failed to load cluster after plugin completion", "app", h.id.String(), "error", err)
		cluster = model.NewClusterModel()
	}

	h.mu.Lock()
	h.cluster = cluster
	h.status = (h.status &^ model.BuildingCluster) | model.WithCluster
	h.mu.Unlock()

	h.log.Infow("cluster ready", "app", h.id.String(), "centroids", len(cluster.Centroids))
	h.maybeBuildPrediction(ctx)
}

func (h *Handler) clearBuildingBit(bit model.Status) {
	h.mu.Lock()
	h.status &^= bit
	h.mu.Unlock()
}

// maybeBuildPrediction launches the prediction plugin once models are
// ready and, if features are declared, the cluster is also ready.
func (h *Handler) maybeBuildPrediction(ctx context.Context) {
	h.mu.Lock()
	modelsReady := h.status.Has(model.WithModel)
	clusterReady := !h.description.HasFeatures() || h.status.Has(model.WithCluster)
	alreadyBuilding := h.status.Has(model.BuildingPrediction)
	if !modelsReady || !clusterReady || alreadyBuilding {
		h.mu.Unlock()
		return
	}
	h.status |= model.BuildingPrediction
	h.mu.Unlock()

	h.launchPrediction(ctx)
}

func (h *Handler) launchPrediction(ctx context.Context) {
	if err := h.predictionLauncher.InitializeWorkspace(h.id, h.cfg.PredictionPlugin); err != nil {
		h.log.Warnw("failed to stage prediction plugin", "app", h.id.String(), "error", err)
		h.clearBuildingBit(model.BuildingPrediction)
		return
	}

	pid, err := h.predictionLauncher.Launch(ctx, h.predictionEnv())
	if err != nil {
		h.log.Warnw("failed to launch prediction plugin", "app", h.id.String(), "error", err)
		h.clearBuildingBit(model.BuildingPrediction)
		return
	}
	if err := h.predictionLauncher.Wait(pid); err != nil {
		h.log.Warnw("prediction plugin failed", "app", h.id.String(), "error", err)
		h.clearBuildingBit(model.BuildingPrediction)
		return
	}

	prediction, err := h.storage.Prediction.Load(h.id)
	if err != nil {
		h.log.Warnw("failed to load prediction after plugin completion", "app", h.id.String(), "error", err)
		h.clearBuildingBit(model.BuildingPrediction)
		return
	}

	h.mu.Lock()
	h.prediction = prediction
	h.status = (h.status &^ model.BuildingPrediction) | model.WithPrediction
	h.mu.Unlock()

	h.log.Infow("prediction ready, broadcasting", "app", h.id.String(), "rows", len(prediction.PredictedResults))
	h.broadcastPrediction()
}

func (h *Handler) sendPredictionLocked(cid string) {
	payload := h.encodePredictionLocked()
	topic := "margot/" + h.id.String() + "/" + cid + "/prediction"
	if err := h.remote.SendMessage(topic, payload); err != nil {
		h.log.Warnw("failed to send prediction", "app", h.id.String(), "client", cid, "error", err)
	}
}

func (h *Handler) broadcastPrediction() {
	h.mu.Lock()
	payload := h.encodePredictionLocked()
	h.mu.Unlock()

	topic := "margot/" + h.id.String() + "/prediction"
	if err := h.remote.SendMessage(topic, payload); err != nil {
		h.log.Warnw("failed to broadcast prediction", "app", h.id.String(), "error", err)
	}
}

func (h *Handler) encodePredictionLocked() string {
	b, err := json.Marshal(h.prediction)
	if err != nil {
		h.log.Warnw("failed to encode prediction", "app", h.id.String(), "error", err)
		return "{}"
	}
	return string(b)
}

func (h *Handler) sendAbort(cid string) {
	topic := "margot/" + h.id.String() + "/" + cid + "/abort"
	if err := h.remote.SendMessage(topic, ""); err != nil {
		h.log.Warnw("failed to send abort", "app", h.id.String(), "client", cid, "error", err)
	}
}

func (h *Handler) abortActiveClients() {
	h.mu.Lock()
	clients := h.snapshotClientsLocked()
	h.mu.Unlock()
	for _, c := range clients {
		h.sendAbort(c)
	}
}

// regressToInformation implements §4.2/§7's plugin-failure contract
// (e.g. scenario S6): drop back to WITH_INFORMATION with an empty doe,
// so the next welcome_client re-launches the DoE plugin.
func (h *Handler) regressToInformation() {
	h.mu.Lock()
	h.status = model.WithInformation
	h.doe = model.NewDoEModel()
	h.totalConfigurations = 0
	h.assigned = make(map[string]string)
	h.mu.Unlock()
}
