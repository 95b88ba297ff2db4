package fingerprint

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	log "monitoring-agent/pkg/log"
)

// commandTimeout bounds the helper commands (dmidecode, lscpu) used while
// collecting components. These are best effort and must not stall the run.
const commandTimeout = 2 * time.Second

// Options controls fingerprint generation.
type Options struct {
	// Salt is mixed into the source string to differentiate environments.
	Salt string
	// CachePath, when non-empty, stores the computed fingerprint so later
	// runs reuse it without recomputing.
	CachePath string
	// ForceRecompute ignores the cache and recomputes.
	ForceRecompute bool
	// MachineIDPath stores the random machine id generated when the host
	// exposes no usable MAC address.
	MachineIDPath string
}

// Generate returns a deterministic sha256 hex fingerprint of the machine,
// derived from hostname, MAC addresses, a CPU identifier and the DMI system
// uuid. Two invocations on the same host yield the same value; the cache
// file makes that hold even across hardware hiccups.
func Generate(opts Options) (string, error) {
	if opts.CachePath != "" && !opts.ForceRecompute {
		if cached := loadCached(opts.CachePath); cached != "" {
			log.Info("fingerprint loaded from cache", "path", opts.CachePath)
			return cached, nil
		}
	}

	components := collectComponents(opts.MachineIDPath)

	parts := []string{
		"hostname=" + components["hostname"],
		"macs=" + components["macs"],
		"cpu_id=" + components["cpu_id"],
		"dmidecode_uuid=" + components["dmidecode_uuid"],
	}
	if opts.Salt != "" {
		parts = append(parts, "salt="+opts.Salt)
	}
	source := strings.Join(parts, "|")

	digest := sha256.Sum256([]byte(source))
	fp := hex.EncodeToString(digest[:])
	log.Info("fingerprint generated")

	if opts.CachePath != "" {
		storeCached(opts.CachePath, fp)
	}
	return fp, nil
}

// collectComponents gathers the raw identity components. Every component is
// best effort; an empty string is acceptable as long as the combination
// stays stable on this host.
func collectComponents(machineIDPath string) map[string]string {
	hostname, _ := os.Hostname()

	macs := collectMACs()
	if len(macs) == 0 && machineIDPath != "" {
		// No usable hardware address, e.g. in a minimal container. A
		// persisted random id keeps the fingerprint stable across runs.
		if id := loadOrCreateMachineID(machineIDPath); id != "" {
			macs = []string{id}
		}
	}

	components := map[string]string{
		"hostname":       hostname,
		"macs":           strings.Join(macs, ","),
		"cpu_id":         collectCPUID(),
		"dmidecode_uuid": runCommand("dmidecode", "-s", "system-uuid"),
	}

	log.Debug("fingerprint components collected", "components", components)
	return components
}

// collectMACs returns the host's MAC addresses, normalized to upper-case
// colon form, de-duplicated and sorted. The all-zero address and loopback
// interfaces are skipped.
func collectMACs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Debug("could not list network interfaces", "error", err)
		return nil
	}

	seen := make(map[string]struct{})
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		mac := normalizeMAC(iface.HardwareAddr.String())
		if mac == "" {
			continue
		}
		seen[mac] = struct{}{}
	}

	macs := make([]string, 0, len(seen))
	for mac := range seen {
		macs = append(macs, mac)
	}
	sort.Strings(macs)
	return macs
}

// normalizeMAC converts an address to upper-case colon-separated form.
// Returns "" for empty, malformed or all-zero addresses.
func normalizeMAC(address string) string {
	addr := strings.ToLower(strings.TrimSpace(address))
	addr = strings.ReplaceAll(addr, "-", "")
	addr = strings.ReplaceAll(addr, ":", "")
	if len(addr) != 12 || addr == "000000000000" {
		return ""
	}
	if _, err := hex.DecodeString(addr); err != nil {
		return ""
	}

	pairs := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		pairs = append(pairs, addr[i:i+2])
	}
	return strings.ToUpper(strings.Join(pairs, ":"))
}

// collectCPUID extracts a stable CPU identifier. On ARM systems
// /proc/cpuinfo carries a Serial field; everywhere else the full cpuinfo
// content is hashed, with lscpu output as a last resort.
func collectCPUID() string {
	if data, err := os.ReadFile("/proc/cpuinfo"); err == nil && len(data) > 0 {
		for _, line := range strings.Split(string(data), "\n") {
			key, value, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "serial", "processor serial", "cpu serial":
				if v := strings.TrimSpace(value); v != "" {
					return v
				}
			}
		}
		digest := sha256.Sum256(data)
		return hex.EncodeToString(digest[:])
	}

	if out := runCommand("lscpu"); out != "" {
		digest := sha256.Sum256([]byte(out))
		return hex.EncodeToString(digest[:])
	}

	return ""
}

// runCommand executes a helper command and returns trimmed stdout, or ""
// on any failure.
func runCommand(name string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		log.Debug("fingerprint helper command failed", "command", name, "error", err)
		return ""
	}
	return strings.TrimSpace(stdout.String())
}

func loadCached(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func storeCached(path, fp string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Debug("cannot create fingerprint cache directory", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path, []byte(fp+"\n"), 0o644); err != nil {
		log.Debug("cannot write fingerprint cache", "path", path, "error", err)
	}
}

// loadOrCreateMachineID reads the persisted machine id, generating and
// storing a fresh one on first use.
func loadOrCreateMachineID(path string) string {
	if id := loadCached(path); id != "" {
		return id
	}

	id := uuid.New().String()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Debug("cannot create machine id directory", "path", path, "error", err)
		return id
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		log.Debug("cannot persist machine id", "path", path, "error", err)
	}
	return id
}
