package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"robocar-service/internal/core"
	"robocar-service/internal/drive"
	"robocar-service/internal/hardware"
	"robocar-service/internal/logger"
	"robocar-service/internal/messaging"
)

func main() {
	// Service log level
	var serviceLogLevel string
	flag.StringVar(&serviceLogLevel, "log", "3", "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG, or a name)")

	// Motors
	motorDriver := flag.String("motor-driver", "hat", "Motor driver: hat, serial or sim")
	i2cBus := flag.String("i2c-bus", "", "I2C bus of the motor HAT (empty for the first bus)")
	hatAddress := flag.Uint("hat-address", hardware.DefaultHatAddress, "I2C address of the motor HAT")
	pwmFreq := flag.Float64("pwm-freq", hardware.DefaultPwmFreq, "Motor HAT PWM frequency in Hz")
	serialPort := flag.String("serial-port", hardware.DefaultSerialPort, "Serial device of the motor bridge")
	serialBaud := flag.Int("serial-baud", hardware.DefaultSerialBaud, "Baud rate of the motor bridge")

	// Inputs
	gamepadPath := flag.String("gamepad", "", "Evdev node of the game controller (empty to disable)")
	gpioChip := flag.String("gpio-chip", "", "GPIO chip of the button pad (empty to disable)")
	gpioButtons := flag.String("gpio-buttons", "up=17,down=27,left=22,right=23,special=24", "Button to GPIO line mapping")

	// Network
	redisEnabled := flag.Bool("redis", true, "Accept move commands and publish state over Redis")
	redisHost := flag.String("redis-host", "127.0.0.1", "Redis host")
	redisPort := flag.Int("redis-port", 6379, "Redis port")
	httpAddr := flag.String("http-addr", ":8080", "HTTP API listen address (empty to disable)")
	moveDuration := flag.Duration("remote-move-duration", core.DefaultRemoteMoveDuration, "Duration of network moves that do not name one")
	moveMax := flag.Duration("remote-move-max", core.DefaultRemoteMoveMax, "Longest network move")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	level, err := logger.ParseLevel(serviceLogLevel)
	if err != nil {
		stdLogger.Fatalf("Invalid -log: %v", err)
	}

	// Create leveled logger
	l := logger.NewLogger(stdLogger, level)

	l.Infof("Starting robocar service...")

	addr, err := hardware.HatAddress(*hatAddress)
	if err != nil {
		l.Fatalf("Invalid -hat-address: %v", err)
	}

	motors, err := openMotors(*motorDriver, *i2cBus, addr, *pwmFreq, *serialPort, *serialBaud, l.WithTag("motors"))
	if err != nil {
		l.Fatalf("Failed to open motors: %v", err)
	}

	var inputs []core.InputSource
	if *gamepadPath != "" {
		gamepad, err := hardware.OpenGamepad(*gamepadPath, l.WithTag("gamepad"))
		if err != nil {
			motors.Close()
			l.Fatalf("Failed to open gamepad: %v", err)
		}
		inputs = append(inputs, gamepad)
	}
	if *gpioChip != "" {
		mapping, err := hardware.ParseButtonMap(*gpioButtons)
		if err != nil {
			motors.Close()
			l.Fatalf("Invalid -gpio-buttons: %v", err)
		}
		inputs = append(inputs, hardware.NewButtons(*gpioChip, mapping, l.WithTag("buttons")))
	}
	if len(inputs) == 0 {
		l.Warnf("No local controller configured, accepting network moves only")
	}

	// Stays nil when Redis is disabled
	var redis core.MessagingClient
	if *redisEnabled {
		redis = messaging.NewRedisClient(*redisHost, *redisPort, l.WithTag("redis"), messaging.Callbacks{})
	}

	cfg := core.Config{
		RemoteMoveDuration: *moveDuration,
		RemoteMoveMax:      *moveMax,
		HTTPAddr:           *httpAddr,
	}
	system := core.NewRobocarSystem(cfg, motors, redis, l, core.WithInputs(inputs...))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := system.Start(ctx); err != nil {
		l.Fatalf("Failed to start system: %v", err)
	}

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)

	done := make(chan error, 1)
	go func() {
		done <- system.Shutdown()
	}()
	select {
	case err := <-done:
		if err != nil {
			l.Errorf("Shutdown finished with errors: %v", err)
			os.Exit(1)
		}
	case <-time.After(10 * time.Second):
		l.Fatalf("Shutdown timed out")
	}
	l.Infof("Shutdown complete")
}

func openMotors(driver, i2cBus string, hatAddress uint16, pwmFreq float64, serialPort string, serialBaud int, l *logger.Logger) (drive.MotorDriver, error) {
	switch driver {
	case "hat":
		hat, err := hardware.OpenMotorHat(i2cBus, hatAddress, pwmFreq, l)
		if err != nil {
			return nil, err
		}
		return hat, nil
	case "serial":
		port, err := hardware.OpenSerialMotors(serialPort, serialBaud, l)
		if err != nil {
			return nil, err
		}
		return port, nil
	case "sim":
		l.Warnf("Using simulated motors")
		return hardware.NewSimMotors(l), nil
	default:
		return nil, fmt.Errorf("unknown motor driver %q, expected hat, serial or sim", driver)
	}
}
