package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/btafoya/pbxprobe/internal/ami"
)

var peersFlags struct {
	jsonOut bool
}

var peersCmd = &cobra.Command{
	Use:          "peers",
	Short:        "Enumerate registered SIP peers from the PBX manager interface",
	RunE:         runPeers,
	SilenceUsage: true,
}

func init() {
	peersCmd.Flags().BoolVar(&peersFlags.jsonOut, "json", false, "Print peers as JSON")
}

func runPeers(cmd *cobra.Command, _ []string) error {
	cfg, err := initRuntime()
	if err != nil {
		return cliError(peersFlags.jsonOut, err)
	}

	peers, err := ami.New(cfg).SIPPeers(cmd.Context())
	if err != nil {
		return cliError(peersFlags.jsonOut, err)
	}

	if peersFlags.jsonOut {
		return printJSON(peers)
	}

	out := cmd.OutOrStdout()
	online := 0
	for _, p := range peers {
		state := "offline"
		if p.Online {
			state = "online"
			online++
		}
		addr := "-"
		if p.IP != "" && p.Port != nil {
			addr = fmt.Sprintf("%s:%d", p.IP, *p.Port)
		}
		fmt.Fprintf(out, "%-10s %-8s %-22s %s\n", p.Name, state, addr, p.Status)
	}
	fmt.Fprintf(out, "%d peers, %d online\n", len(peers), online)
	return nil
}
