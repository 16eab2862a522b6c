package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"dimu-go/internal/hostcfg"
	"dimu-go/services/dimu"
)

func dumpE(cmd *cobra.Command, _ []string) error {
	desc := hostcfg.NewDesc()
	if err := desc.Parse(cmd); err != nil {
		return err
	}
	desc.PostParse()
	format, _ := cmd.Flags().GetString("format")

	store, closeStore, err := openStore(desc.Opt)
	if err != nil {
		return err
	}
	defer closeStore()

	vals, err := dimu.LoadCalibration(store, log.WithField("svc", "calib"))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	names := dimu.ParamNames()

	switch format {
	case "text":
		for _, n := range names {
			fmt.Fprintf(out, "%s\t%g\n", n, vals[n])
		}
	case "yaml":
		// A mapping node keeps storage order.
		doc := &yaml.Node{Kind: yaml.MappingNode}
		for _, n := range names {
			doc.Content = append(doc.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: n},
				&yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprintf("%g", vals[n])},
			)
		}
		b, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		_, _ = out.Write(b)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	log.Debugf("calib: %d parameters from %s (%s image)", len(names), desc.Opt.EEPROM, humanize.IBytes(uint64(store.Capacity())))
	return nil
}
