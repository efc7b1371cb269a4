package app

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/relabs-tech/walking_synth/internal/config"
	"github.com/relabs-tech/walking_synth/internal/transport"
)

// thresholdStep is the nudge applied by the console + and - keys.
const thresholdStep = 1.0

func formatStatus(st transport.Status) string {
	state := "paused"
	if st.Running {
		state = "walking"
	}
	return fmt.Sprintf("[TEMPO] steps=%3d  tempo=%3d spm  threshold=%5.1f  time=%s  %s",
		st.DisplaySteps(), st.Tempo(), st.Threshold, st.Elapsed(), state)
}

// parseConsoleCommand maps one line of console input to a control command.
func parseConsoleCommand(line string) (transport.Command, bool) {
	switch strings.TrimSpace(line) {
	case "+":
		return transport.Command{Cmd: transport.CmdNudge, Value: thresholdStep}, true
	case "-":
		return transport.Command{Cmd: transport.CmdNudge, Value: -thresholdStep}, true
	case "s":
		return transport.Command{Cmd: transport.CmdSave}, true
	case "r":
		return transport.Command{Cmd: transport.CmdReset}, true
	case "start":
		return transport.Command{Cmd: transport.CmdStart}, true
	case "stop":
		return transport.Command{Cmd: transport.CmdStop}, true
	}
	return transport.Command{}, false
}

func readConsoleCommands(in io.Reader, send func(transport.Command) error) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cmd, ok := parseConsoleCommand(line)
		if !ok {
			fmt.Println("commands: + / - threshold, s save, r reset, start, stop")
			continue
		}
		if err := send(cmd); err != nil {
			log.Printf("console: %v", err)
		}
	}
}

// RunConsoleMQTT prints every status update and forwards keyboard commands
// to stepd.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := transport.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	var last string
	sub, err := subscribeStatus(cfg, client, cfg.MQTTClientIDConsole, func(st transport.Status) {
		line := formatStatus(st)
		if line == last {
			return
		}
		last = line
		fmt.Println(line)
	})
	if err != nil {
		client.Disconnect(250)
		return err
	}

	go readConsoleCommands(os.Stdin, func(cmd transport.Command) error {
		return transport.SendCommand(client, cfg.TopicControl, cmd)
	})

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	sub.Unsubscribe()
	client.Disconnect(250)
	return nil
}
