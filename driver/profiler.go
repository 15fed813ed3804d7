package driver

import (
	"log"
	"os"
	"runtime"
	"runtime/pprof"
)

// Profiler writes a CPU profile to filename and, on Close, a heap profile
// next to it. An empty filename disables it.
type Profiler struct {
	f        *os.File
	filename string
}

func NewProfiler(filename string) *Profiler {
	prof := &Profiler{filename: filename}
	if filename == "" {
		return prof
	}
	var err error
	if prof.f, err = os.Create(filename); err != nil {
		log.Fatal("could not create CPU profile: ", err)
	}
	if err := pprof.StartCPUProfile(prof.f); err != nil {
		log.Fatal("could not start CPU profile: ", err)
	}
	return prof
}

func (p *Profiler) Close() {
	if p.f == nil {
		return
	}
	pprof.StopCPUProfile()
	p.f.Close()
	p.f = nil

	runtime.GC()
	memProf, err := os.Create(p.filename + "-mem.prof")
	if err != nil {
		log.Printf("could not create heap profile: %v", err)
		return
	}
	defer memProf.Close()
	if err := pprof.WriteHeapProfile(memProf); err != nil {
		log.Printf("could not write heap profile: %v", err)
	}
}
