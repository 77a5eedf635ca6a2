package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sentrec/internal/audio"
	"sentrec/internal/domain"
	"sentrec/internal/ports"
)

var (
	ErrNoRecordings     = errors.New("no recordings to export")
	ErrExportInit       = errors.New("export engine failed to initialize")
	ErrExportExec       = errors.New("export failed")
	ErrExportInProgress = errors.New("export already in progress")
	ErrNoSegment        = errors.New("no recording for this sentence")
)

const (
	manifestName = "fileList.txt"
	outputName   = "output.wav"

	// CombinedFileName is the name offered for the concatenated download.
	CombinedFileName = "combined_recording.wav"
)

// Exporter concatenates the store's segments, in index order, into one
// downloadable file. Nothing is cached: every run reads the store afresh.
type Exporter struct {
	engine ports.ConcatEngine
	store  ports.SegmentStore
	sink   ports.ArtifactSink
	events ports.EventSink
	logger *zap.Logger

	mu      sync.Mutex
	loaded  bool
	loading bool
}

func NewExporter(engine ports.ConcatEngine, store ports.SegmentStore, sink ports.ArtifactSink, events ports.EventSink, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{engine: engine, store: store, sink: sink, events: events, logger: logger.Named("export")}
}

// Loading reports whether an export is running.
func (e *Exporter) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Export builds the combined artifact and hands it to the download sink.
// On any failure no artifact is offered and Loading returns to false.
func (e *Exporter) Export(ctx context.Context) (domain.ExportResult, error) {
	if err := e.begin(); err != nil {
		return domain.ExportResult{}, err
	}
	defer e.end()

	artifact, count, err := e.Render(ctx)
	if err != nil {
		return domain.ExportResult{}, err
	}

	location, err := e.sink.Save(ctx, artifact)
	if err != nil {
		e.reportDownload(err)
		return domain.ExportResult{}, fmt.Errorf("save %s: %w", artifact.Name, err)
	}

	e.logger.Info("export completed", zap.Int("segments", count), zap.Int("bytes", len(artifact.Data)), zap.String("location", location))
	return domain.ExportResult{
		FileName: artifact.Name,
		Segments: count,
		Bytes:    len(artifact.Data),
		Location: location,
	}, nil
}

// Render runs the concat pipeline and returns the combined artifact without
// delivering it.
func (e *Exporter) Render(ctx context.Context) (domain.Artifact, int, error) {
	segments := e.store.All()
	if len(segments) == 0 {
		return domain.Artifact{}, 0, ErrNoRecordings
	}

	if err := e.load(ctx); err != nil {
		e.logger.Error("concat engine failed to load", zap.Error(err))
		e.events.SessionError(domain.ErrorCodeExportInit, err.Error())
		return domain.Artifact{}, 0, fmt.Errorf("%w: %v", ErrExportInit, err)
	}

	data, err := e.concat(ctx, segments)
	if err != nil {
		e.logger.Error("concat failed", zap.Int("segments", len(segments)), zap.Error(err))
		e.events.SessionError(domain.ErrorCodeExportExec, err.Error())
		return domain.Artifact{}, 0, fmt.Errorf("%w: %v", ErrExportExec, err)
	}

	return domain.Artifact{Name: CombinedFileName, ContentType: audio.ContentTypeWAV, Data: data}, len(segments), nil
}

// SaveSegment offers the single recording at index as recording_<n>.wav.
func (e *Exporter) SaveSegment(ctx context.Context, index int) (string, error) {
	segment, ok := e.store.Get(index)
	if !ok {
		return "", ErrNoSegment
	}
	artifact := domain.Artifact{
		Name:        SegmentFileName(index),
		ContentType: segment.ContentType,
		Data:        segment.Data,
	}
	location, err := e.sink.Save(ctx, artifact)
	if err != nil {
		e.reportDownload(err)
		return "", err
	}
	return location, nil
}

// Close releases the engine's working area.
func (e *Exporter) Close() error {
	e.mu.Lock()
	loaded := e.loaded
	e.loaded = false
	e.mu.Unlock()
	if !loaded {
		return nil
	}
	return e.engine.Close()
}

// SegmentFileName is the 1-based download name for one sentence.
func SegmentFileName(index int) string {
	return fmt.Sprintf("recording_%d.wav", index+1)
}

// BuildManifest lists names in order using the concat demuxer syntax.
func BuildManifest(names []string) []byte {
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "file '%s'\n", name)
	}
	return []byte(b.String())
}

// reportDownload surfaces a failed save. A save the user cancelled is not
// an error worth showing.
func (e *Exporter) reportDownload(err error) {
	if errors.Is(err, context.Canceled) {
		e.logger.Info("download cancelled")
		return
	}
	e.logger.Error("download failed", zap.Error(err))
	e.events.SessionError(domain.ErrorCodeDownload, err.Error())
}

func (e *Exporter) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loading {
		return ErrExportInProgress
	}
	e.loading = true
	return nil
}

func (e *Exporter) end() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false
}

func (e *Exporter) load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return nil
	}
	if err := e.engine.Load(ctx); err != nil {
		return err
	}
	e.loaded = true
	return nil
}

// concat stages one file per segment, writes the manifest in store order and
// stream-copies them into a single output.
func (e *Exporter) concat(ctx context.Context, segments []domain.Segment) ([]byte, error) {
	names := make([]string, len(segments))
	for i := range segments {
		names[i] = fmt.Sprintf("audio%d.wav", i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, segment := range segments {
		name, data := names[i], segment.Data
		g.Go(func() error {
			return e.engine.WriteFile(gctx, name, data)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := e.engine.WriteFile(ctx, manifestName, BuildManifest(names)); err != nil {
		return nil, err
	}
	if err := e.engine.Concat(ctx, manifestName, outputName); err != nil {
		return nil, err
	}
	return e.engine.ReadFile(ctx, outputName)
}
