package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/librescoot/librefsm"
	"go.uber.org/multierr"

	"robocar-service/internal/drive"
	"robocar-service/internal/fsm"
	"robocar-service/internal/input"
	"robocar-service/internal/logger"
	"robocar-service/internal/messaging"
	"robocar-service/internal/types"
	"robocar-service/internal/web"
)

// ErrNotRunning is returned for input that arrives before Start or after Shutdown.
var ErrNotRunning = errors.New("robocar not running")

const (
	DefaultRemoteMoveDuration = 500 * time.Millisecond
	DefaultRemoteMoveMax      = 5 * time.Second

	shutdownTimeout  = 5 * time.Second
	commandQueueSize = 64
)

type Config struct {
	// RemoteMoveDuration applies to network moves that do not name a duration
	RemoteMoveDuration time.Duration
	// RemoteMoveMax caps the duration of a single network move
	RemoteMoveMax time.Duration
	// HTTPAddr is the listen address of the HTTP API, empty to disable it
	HTTPAddr string
}

type Option func(*RobocarSystem)

// WithInputs adds controllers whose buttons drive the car.
func WithInputs(sources ...InputSource) Option {
	return func(s *RobocarSystem) {
		s.inputs = append(s.inputs, sources...)
	}
}

// WithClock replaces the clock used for remote move timers.
func WithClock(c clock.Clock) Option {
	return func(s *RobocarSystem) {
		s.clock = c
	}
}

// WithSpecialHandler installs the hook run when the special button is pressed.
func WithSpecialHandler(h drive.SpecialHandler) Option {
	return func(s *RobocarSystem) {
		s.special = h
	}
}

// stateMachine is the subset of the librefsm machine RobocarSystem drives.
type stateMachine interface {
	Start(ctx context.Context) error
	SendSync(event librefsm.Event) error
	CurrentState() librefsm.StateID
}

// RobocarSystem wires the input sources, the network surfaces and the lifecycle FSM to the
// drive controller. All drive input is serialized through a single loop goroutine which owns
// the debouncer, the controller and the remote move timer.
type RobocarSystem struct {
	cfg     Config
	logger  *logger.Logger
	motors  drive.MotorDriver
	redis   MessagingClient
	inputs  []InputSource
	clock   clock.Clock
	special drive.SpecialHandler

	controller *drive.Controller
	debouncer  *input.Debouncer
	machine    stateMachine
	fsmCancel  context.CancelFunc
	server     *web.Server

	// Owned by the drive loop
	remoteSeq   uint64
	remoteTimer *clock.Timer
	published   string

	// mu guards running and the command channel lifetime
	mu      sync.RWMutex
	running bool
	cmds    chan func()
	done    chan struct{}

	statusMu sync.RWMutex
	status   types.Status

	shutdownOnce sync.Once
}

// NewRobocarSystem creates a system around the motor driver. redis may be nil to run without
// Redis.
func NewRobocarSystem(cfg Config, motors drive.MotorDriver, redis MessagingClient, l *logger.Logger, opts ...Option) *RobocarSystem {
	if cfg.RemoteMoveDuration <= 0 {
		cfg.RemoteMoveDuration = DefaultRemoteMoveDuration
	}
	if cfg.RemoteMoveMax <= 0 {
		cfg.RemoteMoveMax = DefaultRemoteMoveMax
	}
	if cfg.RemoteMoveDuration > cfg.RemoteMoveMax {
		cfg.RemoteMoveDuration = cfg.RemoteMoveMax
	}

	s := &RobocarSystem{
		cfg:       cfg,
		logger:    l,
		motors:    motors,
		redis:     redis,
		clock:     clock.New(),
		debouncer: input.NewDebouncer(),
		cmds:      make(chan func(), commandQueueSize),
		done:      make(chan struct{}),
		status: types.Status{
			State:     types.StateInit,
			Direction: types.DirectionNone,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start configures the motors, then brings up the lifecycle FSM, Redis, the input sources and
// the HTTP API. A motor that cannot be configured fails Start with every motor released.
func (s *RobocarSystem) Start(ctx context.Context) error {
	s.logger.Infof("Starting robocar system")

	var driveOpts []drive.Option
	if s.special != nil {
		driveOpts = append(driveOpts, drive.WithSpecialHandler(s.special))
	}
	controller, err := drive.New(s.motors, s.logger.WithTag("drive"), driveOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize motors: %w", err)
	}
	s.controller = controller

	if s.redis != nil {
		s.connectRedis()
	}

	if err := s.initFSM(ctx); err != nil {
		s.Shutdown()
		return fmt.Errorf("failed to start state machine: %w", err)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	go s.run()

	if err := s.sendEvent(fsm.EvReady); err != nil {
		s.logger.Errorf("Failed to enter idle state: %v", err)
	}

	if s.redis != nil {
		if err := s.redis.StartListening(); err != nil {
			s.logger.Warnf("Failed to start Redis listeners: %v", err)
		}
	}

	for _, src := range s.inputs {
		if err := src.Start(s.buttonCallback); err != nil {
			s.Shutdown()
			return fmt.Errorf("failed to start input source: %w", err)
		}
	}

	if s.cfg.HTTPAddr != "" {
		server := web.NewServer(s.cfg.HTTPAddr, s, s.logger.WithTag("web"))
		if err := server.Start(); err != nil {
			s.Shutdown()
			return err
		}
		s.server = server
	}

	s.logger.Infof("Robocar system started")
	return nil
}

func (s *RobocarSystem) connectRedis() {
	s.redis.SetCallbacks(messaging.Callbacks{
		MoveCallback: s.handleRedisMove,
	})

	if err := s.redis.Connect(); err != nil {
		s.logger.Warnf("Continuing without Redis: %v", err)
		if err := s.redis.Close(); err != nil {
			s.logger.Debugf("Failed to close Redis client: %v", err)
		}
		s.redis = nil
		return
	}

	last, err := s.redis.GetState()
	if err != nil {
		s.logger.Warnf("Failed to read previous state: %v", err)
	} else if last == types.StateDriving {
		s.logger.Warnf("Previous run ended while driving")
	}
}

// Shutdown stops accepting input, releases every motor and closes Redis and the HTTP API.
// Only the first call has an effect.
func (s *RobocarSystem) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.shutdown()
	})
	return err
}

func (s *RobocarSystem) shutdown() error {
	s.logger.Infof("Shutting down robocar system")
	var errs error

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = multierr.Append(errs, s.server.Shutdown(ctx))
		cancel()
	}

	for _, src := range s.inputs {
		errs = multierr.Append(errs, src.Close())
	}

	if s.machine != nil {
		if err := s.sendEvent(fsm.EvShutdown); err != nil {
			s.logger.Warnf("Failed to enter shutting-down state: %v", err)
		}
	}

	s.stopLoop()

	// The drive loop has exited, so the controller is ours from here on
	if s.remoteTimer != nil {
		s.remoteTimer.Stop()
		s.remoteTimer = nil
	}
	if s.controller != nil {
		errs = multierr.Append(errs, s.controller.Close())
		s.setDirection(false, types.DirectionNone)
	}

	if s.redis != nil {
		errs = multierr.Append(errs, s.redis.Close())
	}
	if s.fsmCancel != nil {
		s.fsmCancel()
	}

	if errs != nil {
		s.logger.Errorf("Shutdown finished with errors: %v", errs)
	} else {
		s.logger.Infof("Shutdown complete, all motors released")
	}
	return errs
}

func (s *RobocarSystem) stopLoop() {
	s.mu.Lock()
	wasRunning := s.running
	if wasRunning {
		s.running = false
		close(s.cmds)
	}
	s.mu.Unlock()

	if wasRunning {
		<-s.done
	}
}

// run executes queued commands one at a time until the queue is closed.
func (s *RobocarSystem) run() {
	defer close(s.done)
	s.publishDirection(types.DirectionNone)
	for fn := range s.cmds {
		fn()
	}
	s.logger.Debugf("Drive loop stopped")
}

func (s *RobocarSystem) enqueue(fn func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return ErrNotRunning
	}
	s.cmds <- fn
	return nil
}

// Running reports whether the system accepts input.
func (s *RobocarSystem) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// HandleButton queues a controller button transition.
func (s *RobocarSystem) HandleButton(button types.ButtonCode, pressed bool) error {
	return s.enqueue(func() {
		s.onButton(button, pressed)
	})
}

func (s *RobocarSystem) buttonCallback(button types.ButtonCode, pressed bool) {
	if err := s.HandleButton(button, pressed); err != nil {
		s.logger.Debugf("Dropped button %s pressed=%v: %v", button, pressed, err)
	}
}

func (s *RobocarSystem) onButton(button types.ButtonCode, pressed bool) {
	evt, ok := s.debouncer.Handle(button, pressed)
	if !ok {
		s.logger.Debugf("Ignoring button %s pressed=%v", button, pressed)
		return
	}
	// Local input takes over from any timed network move, except Special which never drives
	if evt.Kind == types.MoveKindStop || evt.Direction != types.DirectionSpecial {
		s.cancelRemoteStop()
	}
	s.apply(evt)
}

// Status returns the lifecycle state and the commanded direction.
func (s *RobocarSystem) Status() types.Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}
