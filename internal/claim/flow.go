package claim

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/leafy-insurance/claims-backend/internal/models"
)

// DefaultToastDelay is how long after the stream ends the review toast shows.
const DefaultToastDelay = 4 * time.Second

const defaultChunkSize = 4 * 1024

// Gateway performs the two backend calls of a flow.
type Gateway interface {
	// Describe uploads img and returns the streamed description body.
	Describe(ctx context.Context, img Image) (io.ReadCloser, error)
	// RunAgent triggers the agent workflow and returns its result.
	RunAgent(ctx context.Context) (*models.AgentResult, error)
}

// SampleFetcher downloads a sample image by reference.
type SampleFetcher interface {
	FetchSample(ctx context.Context, ref string) (Image, error)
}

// Scheduler runs f once after d without blocking the caller.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// Reporter is the single place user-visible outcomes are surfaced.
type Reporter interface {
	Alert(message string)
	Notify(message string)
	Failure(err *FlowError)
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// LogReporter reports through a logger only.
type LogReporter struct {
	Logger *log.Logger
}

func (r LogReporter) Alert(message string) {
	r.Logger.Warn("alert", "message", message)
}

func (r LogReporter) Notify(message string) {
	r.Logger.Info("notification", "message", message)
}

func (r LogReporter) Failure(err *FlowError) {
	r.Logger.Error("upload flow failed", "kind", err.Kind, "op", err.Op, "status", err.Status, "err", err)
}

// FlowOptions tunes a Flow. Zero values pick defaults; a negative
// ToastDelay shows the toast as soon as the stream ends.
type FlowOptions struct {
	ToastDelay time.Duration
	Scheduler  Scheduler
	Reporter   Reporter
	Logger     *log.Logger
	ChunkSize  int
}

// Flow runs the upload-and-describe sequence against one Machine.
type Flow struct {
	machine    *Machine
	gateway    Gateway
	samples    SampleFetcher
	toastDelay time.Duration
	scheduler  Scheduler
	reporter   Reporter
	logger     *log.Logger
	chunkSize  int
}

// NewFlow wires a flow. samples may be nil when only dropped files are used.
func NewFlow(m *Machine, gw Gateway, samples SampleFetcher, opts FlowOptions) *Flow {
	f := &Flow{
		machine:    m,
		gateway:    gw,
		samples:    samples,
		toastDelay: opts.ToastDelay,
		scheduler:  opts.Scheduler,
		reporter:   opts.Reporter,
		logger:     opts.Logger,
		chunkSize:  opts.ChunkSize,
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	f.logger = f.logger.WithPrefix("flow")
	if f.scheduler == nil {
		f.scheduler = timerScheduler{}
	}
	if f.reporter == nil {
		f.reporter = LogReporter{Logger: f.logger}
	}
	if f.chunkSize <= 0 {
		f.chunkSize = defaultChunkSize
	}
	switch {
	case f.toastDelay == 0:
		f.toastDelay = DefaultToastDelay
	case f.toastDelay < 0:
		f.toastDelay = 0
	}
	return f
}

// Machine returns the flow's state machine.
func (f *Flow) Machine() *Machine {
	return f.machine
}

// Upload sends the active image, streams its description, then runs the
// agent. The agent call starts only after the stream drained; the uploaded
// status and the toast timer are in place before it resolves. Errors are
// handed to the Reporter once and returned in the Result.
func (f *Flow) Upload(ctx context.Context) Result[*models.ClaimDetails] {
	res := f.upload(ctx)
	if res.Err != nil {
		switch res.Err.Kind {
		case KindValidation, KindBusy:
			f.reporter.Alert(res.Err.Details)
		default:
			f.reporter.Failure(res.Err)
		}
	}
	return res
}

func (f *Flow) upload(ctx context.Context) Result[*models.ClaimDetails] {
	src, ok := f.machine.Source()
	if !ok {
		return Fail[*models.ClaimDetails](NewError(KindValidation, "upload.source", MsgNoImage))
	}

	gen, ferr := f.machine.Begin()
	if ferr != nil {
		return Fail[*models.ClaimDetails](ferr)
	}
	defer f.machine.Apply(Event{Kind: EventUploadFinished, Generation: gen})

	fail := func(err *FlowError) Result[*models.ClaimDetails] {
		f.machine.Apply(Event{Kind: EventUploadFailed, Generation: gen, Err: err})
		return Fail[*models.ClaimDetails](err)
	}

	img, ferr := f.resolveImage(ctx, src)
	if ferr != nil {
		return fail(ferr)
	}

	f.logger.Debug("sending image", "flow", f.machine.ID(), "name", img.Name, "bytes", len(img.Data))
	stream, err := f.gateway.Describe(ctx, img)
	if err != nil {
		return fail(Wrap(KindTransport, "describe", "image description request failed", err))
	}
	if stream == nil {
		return fail(NewError(KindStreamUnsupported, "describe", MsgNoStream))
	}
	defer stream.Close()

	if ferr := f.consume(gen, stream); ferr != nil {
		return fail(ferr)
	}

	f.machine.Apply(Event{Kind: EventStreamCompleted, Generation: gen})
	f.scheduler.AfterFunc(f.toastDelay, func() {
		if f.machine.Apply(Event{Kind: EventToastShown, Generation: gen}) {
			f.reporter.Notify(MsgToast)
		}
	})

	result, err := f.gateway.RunAgent(ctx)
	if err != nil {
		return fail(Wrap(KindTransport, "run_agent", MsgAgentError, err))
	}
	details := result.ToClaimDetails()
	f.logger.Debug("agent result", "flow", f.machine.ID(), "recommendations", len(details.Recommendation))
	f.machine.Apply(Event{Kind: EventClaimResolved, Generation: gen, Claim: details})

	return Ok(details)
}

func (f *Flow) resolveImage(ctx context.Context, src Source) (Image, *FlowError) {
	if src.Kind == models.SourceDropped && src.Image != nil {
		return *src.Image, nil
	}
	if f.samples == nil {
		return Image{}, NewError(KindValidation, "upload.sample", "sample images are not available")
	}
	img, err := f.samples.FetchSample(ctx, src.Ref)
	if err != nil {
		return Image{}, Wrap(KindTransport, "upload.sample", "failed to fetch sample image", err)
	}
	img.Name = SampleFileName
	return img, nil
}

// consume appends decoded chunks to the description in arrival order.
func (f *Flow) consume(gen uint64, stream io.Reader) *FlowError {
	dec := NewStreamDecoder()
	buf := make([]byte, f.chunkSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if text := dec.Decode(buf[:n]); text != "" {
				f.machine.Apply(Event{Kind: EventChunkReceived, Generation: gen, Text: text})
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Wrap(KindTransport, "describe.read", "description stream interrupted", err)
		}
	}
	if tail := dec.Flush(); tail != "" {
		f.machine.Apply(Event{Kind: EventChunkReceived, Generation: gen, Text: tail})
	}
	return nil
}
