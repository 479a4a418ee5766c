package com

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external command and waits for it.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// HCI drives the BlueZ command line tools: hcitool for scanning and
// advertising, hcidump for receiving.
type HCI struct {
	Device string
	run    Runner
	now    func() time.Time
}

// NewHCI creates a transport on the given adapter (e.g. hci0).
func NewHCI(device string) *HCI {
	return &HCI{Device: device, run: execRunner, now: time.Now}
}

// Start enables passive scanning and configures advertising.
func (h *HCI) Start(ctx context.Context) error {
	scan := exec.CommandContext(ctx, "hcitool", "-i", h.Device, "lescan", "--duplicates")
	if err := scan.Start(); err != nil {
		return fmt.Errorf("failed to start lescan: %w", err)
	}
	go func() { _ = scan.Wait() }()

	// advertising interval 100ms, non-connectable undirected, all channels
	if err := h.run(ctx, "hcitool", "-i", h.Device, "cmd", "0x08", "0x0006",
		"A0", "00", "A0", "00", "03", "00", "00", "00", "00", "00", "00", "00", "00", "07", "00"); err != nil {
		return fmt.Errorf("failed to set advertising parameters: %w", err)
	}
	if err := h.run(ctx, "hcitool", "-i", h.Device, "cmd", "0x08", "0x000a", "01"); err != nil {
		return fmt.Errorf("failed to enable advertising: %w", err)
	}
	slog.Info("hci transport started", "component", "com", "device", h.Device)
	return nil
}

// CastArgs returns the hcitool arguments that set f as advertising data.
func CastArgs(device string, f Frame) []string {
	args := []string{"-i", device, "cmd", "0x08", "0x0008", "1E", "02", "01", "06", "1A", "FF", "FF", "FF"}
	args = append(args, fmt.Sprintf("%02X", f.Identifier))
	for _, b := range f.Payload {
		args = append(args, fmt.Sprintf("%02X", b))
	}
	return args
}

// Cast implements Transport.
func (h *HCI) Cast(ctx context.Context, f Frame) error {
	return h.run(ctx, "hcitool", CastArgs(h.Device, f)...)
}

// Listen implements Transport by parsing hcidump --raw output.
func (h *HCI) Listen(ctx context.Context, out chan<- Neighbor) error {
	cmd := exec.CommandContext(ctx, "hcidump", "-i", h.Device, "--raw")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start hcidump: %w", err)
	}
	defer func() { _ = cmd.Wait() }()

	err = h.scan(ctx, stdout, out)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// scan reads hcidump output and forwards every valid advertisement.
func (h *HCI) scan(ctx context.Context, r io.Reader, out chan<- Neighbor) error {
	return ReadPackets(r, func(pkt []byte) {
		n, err := ParsePacket(pkt)
		if err != nil {
			return
		}
		n.Timestamp = h.now()
		slog.Debug("neighbor received", "component", "com", "id", n.Identifier, "mac", n.MAC, "rssi", n.RSSI)
		select {
		case out <- n:
		case <-ctx.Done():
		}
	})
}

// ReadPackets splits hcidump --raw output into packets. A line starting with
// "> " opens an incoming packet; indented lines continue it.
func ReadPackets(r io.Reader, fn func([]byte)) error {
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		b, err := hex.DecodeString(buf.String())
		buf.Reset()
		if err == nil {
			fn(b)
		}
	}

	sc := bufio.NewScanner(r)
	collecting := false
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "> "):
			flush()
			collecting = true
			buf.WriteString(strings.ReplaceAll(line[2:], " ", ""))
		case strings.HasPrefix(line, "< "):
			flush()
			collecting = false
		case collecting && strings.HasPrefix(line, " "):
			buf.WriteString(strings.ReplaceAll(line, " ", ""))
		default:
			flush()
			collecting = false
		}
	}
	flush()
	return sc.Err()
}

// ParsePacket decodes an LE advertising report carrying roktrack
// manufacturer data (company id 0xFFFF).
func ParsePacket(b []byte) (Neighbor, error) {
	if len(b) <= 22 || b[0] != 0x04 || b[1] != 0x3E || b[20] != 0xFF || b[21] != 0xFF {
		return Neighbor{}, ErrNotAdvertisement
	}
	// identifier and payload follow the 0xFFFF company id and a filler byte
	n, err := DecodeFrame(b[23:])
	if err != nil {
		return Neighbor{}, err
	}
	mac := make([]string, 0, 6)
	for _, x := range b[7:13] {
		mac = append(mac, fmt.Sprintf("%02X", x))
	}
	n.MAC = strings.Join(mac, ":")
	n.RSSI = int8(b[len(b)-1])
	return n, nil
}
