//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/conflictmap/sar-damage-service/internal/adapter/kafkaadapter"
	"github.com/conflictmap/sar-damage-service/internal/config"
	"github.com/conflictmap/sar-damage-service/internal/domain"
	"github.com/conflictmap/sar-damage-service/internal/observability"
	"github.com/conflictmap/sar-damage-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-analysis-requests"
	testSinkTopic   = "test-damage-reports"
)

// --- in-process data sources; Kafka is the only real dependency here ---

func fixtureGrid() domain.Grid {
	return domain.Grid{EPSG: 4326, MinX: 0, MaxY: 2, CellSize: 1, Width: 2, Height: 2}
}

type fixtureScenes struct{}

func (fixtureScenes) Scenes(_ context.Context, _ domain.AreaOfInterest, window domain.DateWindow, polarization string) ([]domain.Scene, error) {
	mean := -6.0
	if window.Start.Year() >= 2022 {
		mean = -12.0
	}
	offsets := []float64{-1, -0.5, 0, 0.5, 1}
	scenes := make([]domain.Scene, len(offsets))
	for i, off := range offsets {
		r := domain.NewRaster(fixtureGrid())
		for j := range r.Data {
			r.Data[j] = mean + off
		}
		scenes[i] = domain.Scene{
			ID:           fmt.Sprintf("scene-%s-%d", window, i),
			AcquiredAt:   window.Start.AddDate(0, 0, i*7),
			Polarization: polarization,
			Backscatter:  r,
		}
	}
	return scenes, nil
}

type fixtureFootprints struct{}

func (fixtureFootprints) Select(string) (domain.FootprintSource, error) {
	return fixtureFootprints{}, nil
}

func (fixtureFootprints) Name() string { return "open-buildings" }

func (fixtureFootprints) PresenceMask(_ context.Context, _ domain.AreaOfInterest, grid domain.Grid) (*domain.Raster, error) {
	mask := domain.NewRaster(grid)
	mask.Set(0, 0, 1)
	mask.Set(1, 0, 1)
	return mask, nil
}

type fixturePopulation struct{}

func (fixturePopulation) PopulationRaster(context.Context, domain.AreaOfInterest) (*domain.Raster, error) {
	pop := domain.NewRaster(fixtureGrid())
	pop.Set(0, 0, 100)
	pop.Set(1, 0, 50)
	pop.Set(0, 1, 10)
	pop.Set(1, 1, 5)
	return pop, nil
}

func requestPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.AnalysisRequest{
		BBox:            "0, 0, 2, 2",
		BaselineStart:   "2021-01-01",
		BaselineEnd:     "2021-06-30",
		AssessmentStart: "2022-03-01",
		AssessmentEnd:   "2022-04-30",
	})
	require.NoError(t, err)
	return payload
}

// readReport reads a single message from the sink consumer and deserializes it.
func readReport(ctx context.Context, t *testing.T, consumer *kafkago.Reader) (domain.DamageReport, map[string]string) {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var report domain.DamageReport
	require.NoError(t, json.Unmarshal(msg.Value, &report), "unmarshal sink message")
	return report, headers
}

// TestKafkaReaderWriter verifies the adapter layer: kafkaadapter.Reader
// (Extractor) and kafkaadapter.Writer (Loader) correctly round-trip a
// message through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaSourceTopic: testSourceTopic,
		KafkaSinkTopic:   testSinkTopic,
		KafkaGroupID:     fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
	}

	payload := requestPayload(t)
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("test-key"),
		Value: payload,
	}))

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	raw, err := reader.Extract(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("test-key"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	// Run a full analysis on the extracted request.
	metrics := observability.NewMetricsForTesting()
	analyzer := pipeline.NewAnalyzer(fixtureScenes{}, fixtureFootprints{}, fixturePopulation{}, 0, metrics, discardLogger())
	out, err := analyzer.Analyze(ctx, raw)
	require.NoError(t, err)

	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.Load(ctx, out))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	report, headers := readReport(ctx, t, consumer)
	assert.Equal(t, "open-buildings", headers["footprint_provider"])
	_, err = time.Parse(time.RFC3339, headers["generated_at"])
	assert.NoError(t, err, "generated_at should be valid RFC3339")

	assert.Equal(t, "0, 0, 2, 2", report.BBox)
	assert.Equal(t, 2, report.DamagedCells)
	assert.InDelta(t, 150.0, report.AffectedPopulation, 1e-9)
}

// TestPipelineEndToEnd wires the full pipeline (Reader, DamageAnalyzer,
// Writer) with real Kafka and verifies reports for multiple requests.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaSourceTopic: testSourceTopic,
		KafkaSinkTopic:   testSinkTopic,
		KafkaGroupID:     fmt.Sprintf("test-pipeline-%d", time.Now().UnixNano()),
	}

	const requestCount = 3
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, requestCount)
	for i := 0; i < requestCount; i++ {
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("request-%d", i)),
			Value: requestPayload(t),
		})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	analyzer := pipeline.NewAnalyzer(fixtureScenes{}, fixtureFootprints{}, fixturePopulation{}, 0, metrics, discardLogger())
	p := pipeline.New(reader, analyzer, writer, discardLogger(), metrics)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	ids := map[string]bool{}
	for i := 0; i < requestCount; i++ {
		report, headers := readReport(ctx, t, consumer)
		ids[report.ID] = true

		assert.Equal(t, "open-buildings", headers["footprint_provider"])
		assert.Equal(t, 5, report.BaselineScenes)
		assert.Equal(t, 5, report.AssessmentScenes)
		assert.Equal(t, 2, report.DamagedCells)
		assert.Equal(t, map[string]int{
			domain.TierLikely:      0,
			domain.TierSignificant: 0,
			domain.TierSevere:      2,
		}, report.SeverityCells)
		assert.InDelta(t, 150.0, report.AffectedPopulation, 1e-9)
	}
	assert.Len(t, ids, requestCount, "each request should get its own report ID")

	pipelineCancel()
	require.NoError(t, <-errCh)
}

// TestPipelineAnalysisError verifies that a malformed request (poison pill)
// is skipped and the pipeline continues processing valid requests.
func TestPipelineAnalysisError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)

	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaSourceTopic: testSourceTopic,
		KafkaSinkTopic:   testSinkTopic,
		KafkaGroupID:     fmt.Sprintf("test-poison-%d", time.Now().UnixNano()),
	}

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("good"), Value: requestPayload(t)},
	))

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	analyzer := pipeline.NewAnalyzer(fixtureScenes{}, fixtureFootprints{}, fixturePopulation{}, 0, metrics, discardLogger())
	p := pipeline.New(reader, analyzer, writer, discardLogger(), metrics)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	report, _ := readReport(ctx, t, consumer)
	assert.Equal(t, 2, report.DamagedCells)

	// Verify no second message arrives (the poison pill was skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
