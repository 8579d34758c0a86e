// Package probe runs the external HTTP probing binary (ProjectDiscovery httpx)
// on behalf of the tellix adapters.
//
// The package does no probing of its own. A single Probe call assembles the
// argument vector, materializes the target list in a private workspace, runs
// the binary, collects its line-delimited JSON output and removes the
// workspace again. Every adapter (line protocol, MCP tools, HTTP API, CLI)
// goes through the same Prober, so behavior such as JSON flag handling is
// identical everywhere.
//
// # Invocation lifecycle
//
//   - ParseTargets splits, trims and validates the newline separated target
//     list. Nothing touches the filesystem if this fails.
//   - ValidateArgs rejects flags that would redirect the binary's own input or
//     output, and shell metacharacters.
//   - A workspace directory named probe-<uuid> is created exclusively under
//     the scratch directory. It holds targets.txt and results.jsonl.
//   - The binary runs through an Executor without a shell:
//
//     <caller flags...> -l <workspace>/targets.txt -o <workspace>/results.jsonl -json
//
//   - results.jsonl is read line by line. A missing or empty file yields zero
//     records. A malformed line fails the whole invocation.
//   - The workspace is removed on every exit path. Removal failures are logged
//     and counted, never returned.
//
// # Usage
//
//	prober := probe.New(probe.Options{
//		Binary:     "httpx",
//		ScratchDir: "/tmp/tellix",
//		Timeout:    10 * time.Minute,
//	}, probe.NewCommandExecutor(), logging.Default())
//
//	result, err := prober.Probe(ctx, probe.Request{
//		Targets: "example.com\nexample.org",
//		Args:    probe.PresetFlags(probe.LevelQuick),
//		Level:   probe.LevelQuick,
//	})
//
// # Presets
//
// Three flag presets mirror the MCP tools: LevelQuick for lightweight
// metadata, LevelComplete adding deeper probes, and LevelFull which also
// captures response bodies.
//
// # Janitor
//
// Workspaces can only outlive a request if the process dies mid-invocation.
// Long-running modes start a Janitor that periodically removes probe-*
// directories older than a configured age.
package probe
