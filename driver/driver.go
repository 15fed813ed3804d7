// Package driver runs a pir.Client and a pir.Server in one process over a
// chosen engine and measures them: server and client time, the wire size of
// queries and replies, and the read rate.
package driver

import (
	"math/rand"
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/pkg/errors"

	"github.com/dimakogan/hpir/engine"
	"github.com/dimakogan/hpir/pir"
)

type RowIndexVal struct {
	Index int
	Value pir.Row
}

type Driver struct {
	engineType EngineType
	eng        engine.Engine

	config     TestConfig
	randSource *rand.Rand
	rows       []pir.Row

	server *pir.Server
	client *pir.Client
	reader pir.PIRReader

	// For profiling
	setupTime, answerTime time.Duration
	readTime              time.Duration
	onlineBytes           int
	reads                 *ratecounter.RateCounter
}

func NewDriver(t EngineType) (*Driver, error) {
	eng, err := NewEngine(t)
	if err != nil {
		return nil, err
	}
	return &Driver{
		engineType: t,
		eng:        eng,
		randSource: pir.RandSource(),
		reads:      ratecounter.NewRateCounter(1 * time.Second),
	}, nil
}

func (d *Driver) EngineType() EngineType {
	return d.engineType
}

// Configure generates a fresh database for config and sets up a server and
// a client over it, releasing any previous ones.
func (d *Driver) Configure(config TestConfig) error {
	d.Close()
	d.config = config
	if config.DataRandSeed > 0 {
		d.randSource = rand.New(rand.NewSource(config.DataRandSeed))
	}

	d.rows = pir.MakeRows(d.randSource, config.NumRows, config.RowLen)
	for _, preset := range config.PresetRows {
		copy(d.rows[preset.Index], preset.Value)
	}

	d.ResetMetrics()
	start := time.Now()
	server, err := pir.NewServerFromRows(d.eng, d.rows, config.alpha(), config.depth())
	if err != nil {
		return errors.Wrapf(err, "driver: server setup for %s", config)
	}
	client, err := pir.NewClientWithParams(d.eng, uint64(config.RowLen), uint64(config.NumRows),
		config.alpha(), config.depth())
	if err != nil {
		server.Close()
		return errors.Wrapf(err, "driver: client setup for %s", config)
	}
	d.setupTime += time.Since(start)

	d.server, d.client = server, client
	d.reader = pir.NewPIRReader(client, d)
	return nil
}

// AddRows appends numRows random rows. The server is rebuilt over the
// grown database and the client is re-parameterized in place.
func (d *Driver) AddRows(numRows int) error {
	if d.client == nil {
		return errors.New("driver: AddRows before Configure")
	}
	n := len(d.rows)
	rows := append(d.rows[:n:n], pir.MakeRows(d.randSource, numRows, d.config.RowLen)...)

	start := time.Now()
	server, err := pir.NewServerFromRows(d.eng, rows, d.config.alpha(), d.config.depth())
	if err != nil {
		return errors.Wrapf(err, "driver: server setup for %d rows", len(rows))
	}
	if err := d.client.UpdateParams(uint64(d.config.RowLen), uint64(len(rows)),
		d.config.alpha(), d.config.depth()); err != nil {
		// The client kept its old shape, so keep the old server too.
		server.Close()
		return err
	}
	d.setupTime += time.Since(start)

	d.server.Close()
	d.server = server
	d.rows = rows
	d.config.NumRows = len(rows)
	return nil
}

// Reply forwards q to the server, accounting the time it takes and the
// encoded size of both messages.
func (d *Driver) Reply(q pir.Query) (pir.Reply, error) {
	if d.config.MeasureBandwidth {
		reqSize, err := SerializedSizeOf(q)
		if err != nil {
			return pir.Reply{}, err
		}
		d.onlineBytes += reqSize
	}

	start := time.Now()
	reply, err := d.server.Reply(q)
	if err != nil {
		return pir.Reply{}, err
	}
	d.answerTime += time.Since(start)

	if d.config.MeasureBandwidth {
		respSize, err := SerializedSizeOf(reply)
		if err != nil {
			return pir.Reply{}, err
		}
		d.onlineBytes += respSize
	}
	return reply, nil
}

func (d *Driver) Read(idx int) (pir.Row, error) {
	if d.reader == nil {
		return nil, errors.New("driver: Read before Configure")
	}
	start := time.Now()
	row, err := d.reader.Read(uint64(idx))
	if err != nil {
		return nil, err
	}
	d.readTime += time.Since(start)
	d.reads.Incr(1)
	return row, nil
}

func (d *Driver) GetRow(idx int) RowIndexVal {
	return RowIndexVal{Index: idx, Value: d.rows[idx]}
}

func (d *Driver) NumRows() int {
	return len(d.rows)
}

func (d *Driver) RowLen() int {
	return d.config.RowLen
}

func (d *Driver) SetupTimer() time.Duration {
	return d.setupTime
}

// AnswerTimer is the time spent inside the server.
func (d *Driver) AnswerTimer() time.Duration {
	return d.answerTime
}

// ReadTimer is the end-to-end read time, server included.
func (d *Driver) ReadTimer() time.Duration {
	return d.readTime
}

func (d *Driver) OnlineBytes() int {
	return d.onlineBytes
}

// ReadRate is the number of reads completed in the last second.
func (d *Driver) ReadRate() int64 {
	return d.reads.Rate()
}

func (d *Driver) ResetMetrics() {
	d.setupTime = 0
	d.answerTime = 0
	d.readTime = 0
	d.onlineBytes = 0
}

func (d *Driver) Close() {
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
	if d.server != nil {
		d.server.Close()
		d.server = nil
	}
	d.reader = nil
}
