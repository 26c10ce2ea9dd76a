// Package monitoring serves a running kernel over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/rvkernel/kernel"
	"github.com/sarchlab/rvkernel/monitoring/web"
)

// Kernel is the part of a kernel that the monitor can see and control.
type Kernel interface {
	ID() string
	Cycles() uint64
	Halted() bool
	Paused() bool
	Pause()
	Continue()
	Processes() []kernel.ProcessInfo
	Process(pid int) (kernel.ProcessInfo, bool)
	Memory() kernel.MemoryInfo
}

// Monitor turns a kernel into a server that can be watched and paused from a
// browser.
type Monitor struct {
	kernel     Kernel
	portNumber int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterKernel sets the kernel to watch.
func (m *Monitor) RegisterKernel(k Kernel) {
	m.kernel = k
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router that serves the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseKernel)
	r.HandleFunc("/api/continue", m.continueKernel)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/procs", m.listProcesses)
	r.HandleFunc("/api/top", m.topProcesses)
	r.HandleFunc("/api/proc/{pid:[0-9]+}", m.processDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/memory", m.memory)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring kernel with %s\n", url)

	go func() {
		err := http.Serve(listener, m.Handler())
		dieOnErr(err)
	}()

	return url
}

func (m *Monitor) pauseKernel(w http.ResponseWriter, _ *http.Request) {
	m.kernel.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueKernel(w http.ResponseWriter, _ *http.Request) {
	m.kernel.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

type nowRsp struct {
	ID     string `json:"id"`
	Cycles uint64 `json:"cycles"`
	Halted bool   `json:"halted"`
	Paused bool   `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, nowRsp{
		ID:     m.kernel.ID(),
		Cycles: m.kernel.Cycles(),
		Halted: m.kernel.Halted(),
		Paused: m.kernel.Paused(),
	})
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	procs := m.kernel.Processes()
	if procs == nil {
		procs = []kernel.ProcessInfo{}
	}

	writeJSON(w, procs)
}

func (m *Monitor) processDetails(w http.ResponseWriter, r *http.Request) {
	info := m.findProcessOr404(w, mux.Vars(r)["pid"])
	if info == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(info)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	PID       int    `json:"pid"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	info := m.findProcessOr404(w, strconv.Itoa(req.PID))
	if info == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(info)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) topProcesses(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := parseTopParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	writeJSON(w, sortAndSelect(m.kernel.Processes(), sortMethod, limit, offset))
}

func parseTopParams(r *http.Request) (sort string, limit, offset int, err error) {
	sortMethod := r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "cpu"
	}

	if sortMethod != "cpu" && sortMethod != "pages" {
		errStr := fmt.Sprintf(
			"Invalid sort method: %s. Allowed values are `cpu` and `pages`",
			sortMethod)
		return "", 0, 0, errors.New(errStr)
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "0"
	}

	limitNumber, err := strconv.Atoi(limitStr)
	if err != nil || limitNumber < 0 {
		return sortMethod, 0, 0, fmt.Errorf("invalid limit %q", limitStr)
	}

	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		offsetStr = "0"
	}

	offsetNumber, err := strconv.Atoi(offsetStr)
	if err != nil || offsetNumber < 0 {
		return sortMethod, limitNumber, 0, fmt.Errorf("invalid offset %q", offsetStr)
	}

	return sortMethod, limitNumber, offsetNumber, nil
}

// sortAndSelect orders processes by the chosen resource, heaviest first, and
// returns a page of them. A zero limit means all.
func sortAndSelect(
	procs []kernel.ProcessInfo,
	sortMethod string,
	limit, offset int,
) []kernel.ProcessInfo {
	sorted := make([]kernel.ProcessInfo, len(procs))
	copy(sorted, procs)

	key := func(p kernel.ProcessInfo) uint64 { return p.CPUCycles }
	if sortMethod == "pages" {
		key = func(p kernel.ProcessInfo) uint64 { return uint64(p.Pages) }
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := key(sorted[i]), key(sorted[j])
		if ki != kj {
			return ki > kj
		}

		return sorted[i].PID < sorted[j].PID
	})

	if offset > len(sorted) {
		offset = len(sorted)
	}

	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sorted[offset:end]
}

func (m *Monitor) findProcessOr404(
	w http.ResponseWriter,
	pidStr string,
) *kernel.ProcessInfo {
	pid, err := strconv.Atoi(pidStr)
	if err == nil {
		if info, ok := m.kernel.Process(pid); ok {
			return &info
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err = w.Write([]byte("Process not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) memory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.kernel.Memory())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
