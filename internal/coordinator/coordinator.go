package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/gotcore/internal/cas"
)

const takeoverAfter = 3 * time.Second

// AnnounceMsg is published on TopicAnnounce when a task becomes available
// for distributed execution.
type AnnounceMsg struct {
	TaskID    string    `json:"task_id"`
	ClockHead ClockHead `json:"clock_head"`
}

// HeartbeatMsg is published by the elected executor within 1s of election.
type HeartbeatMsg struct {
	TaskID     string `json:"task_id"`
	ExecutorID string `json:"executor_id"`
}

// CompleteMsg is published by the executor once the task finishes.
type CompleteMsg struct {
	TaskID     string    `json:"task_id"`
	ResultCID  cas.CID   `json:"result_cid"`
	ClockHead  ClockHead `json:"clock_head"`
	ExecutorID string    `json:"executor_id"`
}

// taskShadow is the local view of a remotely-coordinated task.
type taskShadow struct {
	status    string // "announced" | "running" | "completed"
	executor  string
	resultCID cas.CID
	clockHead ClockHead
}

// Executor runs a task locally once this node is elected responsible, given
// its id.
type Executor func(ctx context.Context, taskID string) (cas.CID, error)

// OnComplete is invoked whenever a task (local or remote) is observed
// completed, so the Engine can re-evaluate dependents.
type OnComplete func(taskID string, resultCID cas.CID)

// Coordinator implements the announce/heartbeat/complete protocol and the
// hamming-distance responsibility election of spec.md §4.6.
type Coordinator struct {
	mu     sync.Mutex
	bus    PubSub
	clock  *MerkleClock
	tasks  map[string]*taskShadow
	exec   Executor
	onDone OnComplete

	electionsWon metric.Int64Counter
	takeovers    metric.Int64Counter
}

// New wires a Coordinator onto bus, executing announced tasks via exec and
// reporting every observed completion (local or remote) to onDone.
func New(bus PubSub, exec Executor, onDone OnComplete) *Coordinator {
	meter := otel.Meter("gotcore")
	electionsWon, _ := meter.Int64Counter("got_coordinator_elections_won_total")
	takeovers, _ := meter.Int64Counter("got_coordinator_takeovers_total")
	c := &Coordinator{
		bus:          bus,
		clock:        NewMerkleClock(),
		tasks:        make(map[string]*taskShadow),
		exec:         exec,
		onDone:       onDone,
		electionsWon: electionsWon,
		takeovers:    takeovers,
	}
	return c
}

// Start subscribes to all three coordinator topics. Call once per process.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.bus.Subscribe(ctx, TopicAnnounce, c.onAnnounce); err != nil {
		return err
	}
	if err := c.bus.Subscribe(ctx, TopicHeartbeat, c.onHeartbeat); err != nil {
		return err
	}
	if err := c.bus.Subscribe(ctx, TopicComplete, c.onComplete); err != nil {
		return err
	}
	return nil
}

// Announce publishes a new task for distributed election, the hook the
// scheduler taps whenever a node is eligible for remote execution.
func (c *Coordinator) Announce(ctx context.Context, taskID string) error {
	head := c.clock.Tick("announce:" + taskID)
	c.mu.Lock()
	c.tasks[taskID] = &taskShadow{status: "announced", clockHead: head}
	c.mu.Unlock()

	msg, err := json.Marshal(AnnounceMsg{TaskID: taskID, ClockHead: head})
	if err != nil {
		return err
	}
	if err := c.bus.Publish(ctx, TopicAnnounce, msg); err != nil {
		return err
	}
	go c.evaluateElection(ctx, taskID, head, "")
	return nil
}

func (c *Coordinator) onAnnounce(ctx context.Context, sender string, payload []byte) {
	var msg AnnounceMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	c.mu.Lock()
	if _, ok := c.tasks[msg.TaskID]; !ok {
		c.tasks[msg.TaskID] = &taskShadow{status: "announced", clockHead: msg.ClockHead}
	}
	c.mu.Unlock()
	go c.evaluateElection(ctx, msg.TaskID, msg.ClockHead, "")
}

// evaluateElection runs the responsibility rule and, if this node wins,
// sends a heartbeat within 1s and executes the task. excluded names a peer
// to leave out of consideration (the failed-over-from executor).
func (c *Coordinator) evaluateElection(ctx context.Context, taskID string, head ClockHead, excluded string) {
	peers := c.bus.Peers()
	local := c.bus.LocalPeerID()
	responsible := local
	if excluded == "" {
		if !IsResponsible(local, peers, head) {
			c.watchForTakeover(ctx, taskID, head)
			return
		}
	} else {
		responsible = NextResponsible(local, peers, head, excluded)
		if responsible != local {
			return
		}
		c.takeovers.Add(ctx, 1)
	}

	c.electionsWon.Add(ctx, 1)
	if ctx.Err() != nil {
		return
	}
	hb, _ := json.Marshal(HeartbeatMsg{TaskID: taskID, ExecutorID: local})
	c.bus.Publish(ctx, TopicHeartbeat, hb)

	c.mu.Lock()
	if shadow, ok := c.tasks[taskID]; ok {
		shadow.status = "running"
		shadow.executor = local
	}
	c.mu.Unlock()

	resultCID, err := c.exec(ctx, taskID)
	if err != nil {
		return
	}
	completeHead := c.clock.Tick(taskID + ":complete")
	complete, _ := json.Marshal(CompleteMsg{TaskID: taskID, ResultCID: resultCID, ClockHead: completeHead, ExecutorID: local})
	c.bus.Publish(ctx, TopicComplete, complete)

	c.mu.Lock()
	if shadow, ok := c.tasks[taskID]; ok {
		shadow.status = "completed"
		shadow.resultCID = resultCID
		shadow.clockHead = completeHead
	}
	c.mu.Unlock()
	if c.onDone != nil {
		c.onDone(taskID, resultCID)
	}
}

// watchForTakeover waits takeoverAfter for a heartbeat; if none arrives and
// the task is still unclaimed, re-evaluates as the next-closest peer.
func (c *Coordinator) watchForTakeover(ctx context.Context, taskID string, head ClockHead) {
	select {
	case <-time.After(takeoverAfter):
	case <-ctx.Done():
		return
	}
	c.mu.Lock()
	shadow, ok := c.tasks[taskID]
	stillPending := ok && shadow.status == "announced"
	c.mu.Unlock()
	if !stillPending {
		return
	}
	failedExecutor := electResponsible(c.bus.LocalPeerID(), c.bus.Peers(), head)
	c.evaluateElection(ctx, taskID, head, failedExecutor)
}

func (c *Coordinator) onHeartbeat(ctx context.Context, sender string, payload []byte) {
	var msg HeartbeatMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	c.mu.Lock()
	if shadow, ok := c.tasks[msg.TaskID]; ok && shadow.status == "announced" {
		shadow.status = "running"
		shadow.executor = msg.ExecutorID
	}
	c.mu.Unlock()
}

// onComplete merges the clock, marks the local shadow copy Completed, and
// re-evaluates dependents via onDone — spec.md §4.6: "A task may be
// executed more than once under partition; the result with the earliest
// clock_head wins on merge."
func (c *Coordinator) onComplete(ctx context.Context, sender string, payload []byte) {
	var msg CompleteMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	c.clock.Merge(msg.ClockHead)

	c.mu.Lock()
	shadow, ok := c.tasks[msg.TaskID]
	if !ok {
		shadow = &taskShadow{}
		c.tasks[msg.TaskID] = shadow
	}
	firstResult := shadow.status != "completed" || msg.ClockHead < shadow.clockHead
	if firstResult {
		shadow.status = "completed"
		shadow.resultCID = msg.ResultCID
		shadow.clockHead = msg.ClockHead
		shadow.executor = msg.ExecutorID
	}
	c.mu.Unlock()

	if firstResult && c.onDone != nil {
		c.onDone(msg.TaskID, msg.ResultCID)
	}
}

// TaskStatus reports the local shadow status for taskID, for tests and
// introspection.
func (c *Coordinator) TaskStatus(taskID string) (status string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	shadow, ok := c.tasks[taskID]
	if !ok {
		return "", false
	}
	return shadow.status, true
}
