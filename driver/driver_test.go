package driver

import (
	"os"
	"testing"
	"time"

	"github.com/paulbellamy/ratecounter"
	"gotest.tools/assert"

	"github.com/dimakogan/hpir/engine"
	"github.com/dimakogan/hpir/nonprivate"
	"github.com/dimakogan/hpir/pir"
)

var config *Config

func TestMain(m *testing.M) {
	config = new(Config).AddPirFlags().AddBenchmarkFlags().Parse()
	os.Exit(m.Run())
}

func TestEngineTypeString(t *testing.T) {
	for _, et := range EngineTypeValues() {
		parsed, err := EngineTypeString(et.String())
		assert.NilError(t, err)
		assert.Equal(t, parsed, et)
	}
	_, err := EngineTypeString("Punc")
	assert.ErrorContains(t, err, "does not belong")
	assert.Equal(t, EngineType(7).String(), "EngineType(7)")
}

func TestStatic(t *testing.T) {
	for _, et := range EngineTypeValues() {
		t.Run(et.String(), func(t *testing.T) {
			d, err := NewDriver(et)
			assert.NilError(t, err)
			defer d.Close()

			presetRow := make(pir.Row, 16)
			pir.RandSource().Read(presetRow)

			assert.NilError(t, d.Configure(TestConfig{
				NumRows:      100,
				RowLen:       16,
				PresetRows:   []RowIndexVal{{7, presetRow}},
				DataRandSeed: 13,
			}))

			val, err := d.Read(7)
			assert.NilError(t, err)
			assert.DeepEqual(t, val, presetRow)

			for _, i := range []int{0, 50, 99} {
				val, err := d.Read(i)
				assert.NilError(t, err)
				assert.DeepEqual(t, val, d.GetRow(i).Value)
			}
			assert.Assert(t, d.ReadRate() > 0)
		})
	}
}

func TestAddRows(t *testing.T) {
	for _, et := range EngineTypeValues() {
		t.Run(et.String(), func(t *testing.T) {
			d, err := NewDriver(et)
			assert.NilError(t, err)
			defer d.Close()

			assert.NilError(t, d.Configure(TestConfig{NumRows: 4, RowLen: 8, DataRandSeed: 5}))
			assert.NilError(t, d.AddRows(12))
			assert.Equal(t, d.NumRows(), 16)

			for _, i := range []int{3, 4, 15} {
				val, err := d.Read(i)
				assert.NilError(t, err)
				assert.DeepEqual(t, val, d.GetRow(i).Value)
			}
		})
	}
}

// frozenEngine refuses to move a client to a new shape.
type frozenEngine struct {
	*nonprivate.Engine
}

func (frozenEngine) ClientUpdateParams(engine.Handle, uint64, uint64, uint64, uint64) error {
	return engine.ErrAlloc
}

func TestAddRowsFailureKeepsShape(t *testing.T) {
	np, err := nonprivate.New()
	assert.NilError(t, err)
	d := &Driver{
		eng:        frozenEngine{np},
		randSource: pir.RandSource(),
		reads:      ratecounter.NewRateCounter(1 * time.Second),
	}
	defer d.Close()
	assert.NilError(t, d.Configure(TestConfig{NumRows: 4, RowLen: 8}))

	assert.ErrorContains(t, d.AddRows(12), "allocation failed")
	assert.Equal(t, d.NumRows(), 4)
	assert.Equal(t, np.Handles.Live(), 2)
	for i := 0; i < 4; i++ {
		val, err := d.Read(i)
		assert.NilError(t, err)
		assert.DeepEqual(t, val, d.GetRow(i).Value)
	}
}

func TestMeasureBandwidth(t *testing.T) {
	d, err := NewDriver(NonPrivate)
	assert.NilError(t, err)
	defer d.Close()
	assert.NilError(t, d.Configure(TestConfig{NumRows: 10, RowLen: 4, MeasureBandwidth: true}))

	_, err = d.Read(3)
	assert.NilError(t, err)

	// 8-byte index query, 4-byte row split into 4+2 one-byte shards.
	qSize, err := SerializedSizeOf(pir.Query{Payload: make([]byte, 8), ShardCount: 1})
	assert.NilError(t, err)
	rSize, err := SerializedSizeOf(pir.Reply{Payload: make([]byte, 6), ShardCount: 6})
	assert.NilError(t, err)
	assert.Equal(t, d.OnlineBytes(), qSize+rSize)
	assert.Assert(t, d.ReadTimer() >= d.AnswerTimer())

	d.ResetMetrics()
	assert.Equal(t, d.OnlineBytes(), 0)
}

func TestReadBeforeConfigure(t *testing.T) {
	d, err := NewDriver(Matrix)
	assert.NilError(t, err)
	_, err = d.Read(0)
	assert.ErrorContains(t, err, "before Configure")
	assert.ErrorContains(t, d.AddRows(1), "before Configure")
}

func BenchmarkRead(b *testing.B) {
	d, err := config.Driver()
	assert.NilError(b, err)
	defer d.Close()

	prof := NewProfiler(config.CpuProfile)
	defer prof.Close()

	rand := pir.RandSource()
	b.Run(config.String(), func(b *testing.B) {
		d.ResetMetrics()
		for i := 0; i < b.N; i++ {
			row := d.GetRow(rand.Intn(d.NumRows()))
			val, err := d.Read(row.Index)
			assert.NilError(b, err)
			assert.DeepEqual(b, val, row.Value)
		}
		b.ReportMetric(float64(d.AnswerTimer().Microseconds())/float64(b.N), "answer-us/op")
		b.ReportMetric(float64((d.ReadTimer()-d.AnswerTimer()).Microseconds())/float64(b.N), "client-us/op")
		b.ReportMetric(float64(d.OnlineBytes())/float64(b.N), "online-bytes/op")
	})
}

func BenchmarkGrow(b *testing.B) {
	d, err := NewDriver(config.EngineType)
	assert.NilError(b, err)
	defer d.Close()

	steps := config.NumUpdates
	if steps < 1 {
		steps = 1
	}
	var setup time.Duration
	for i := 0; i < b.N; i++ {
		if i%steps == 0 {
			b.StopTimer()
			assert.NilError(b, d.Configure(config.TestConfig))
			b.StartTimer()
		}
		d.ResetMetrics()
		assert.NilError(b, d.AddRows(config.UpdateSize))
		setup += d.SetupTimer()
	}
	b.StopTimer()
	idx := d.NumRows() - 1
	val, err := d.Read(idx)
	assert.NilError(b, err)
	assert.DeepEqual(b, val, d.GetRow(idx).Value)
	b.ReportMetric(float64(setup.Microseconds())/float64(b.N), "setup-us/op")
}
