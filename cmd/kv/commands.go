package kv

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	initCmd = &cobra.Command{
		Use:   "init [key] [elements...]",
		Short: "Initializes a key with a value",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value, err := parseKeyValue(args, devices[0])
			if err != nil {
				return err
			}
			if err := kv.InitOne(key, value); err != nil {
				return err
			}
			fmt.Printf("initialized key=%d shape=%s\n", key, value.Shape())
			return nil
		},
	}
	pushCmd = &cobra.Command{
		Use:   "push [key] [elements...]",
		Short: "Pushes a value to a key, once per registered device",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]db.Key, len(devices))
			values := make([]tensor.Value, len(devices))
			for i, ctx := range devices {
				key, value, err := parseKeyValue(args, ctx)
				if err != nil {
					return err
				}
				keys[i], values[i] = key, value
			}
			if err := kv.Push(keys, values); err != nil {
				return err
			}
			fmt.Printf("pushed key=%d from %d device(s)\n", keys[0], len(devices))
			return nil
		},
	}
	pullCmd = &cobra.Command{
		Use:   "pull [key]",
		Short: "Reads the current value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseKey(args[0])
			if err != nil {
				return err
			}
			snapshotter, ok := rpcStore.(store.ISnapshotter)
			if !ok {
				return store.NewError(store.RetCUnsupportedOperation, "the client does not support pulls without a shape")
			}
			value, gen, err := snapshotter.Snapshot(db.Key(key))
			if err != nil {
				return err
			}
			fmt.Printf("key=%d, shape=%s, generation=%d, data=%v\n", key, value.Shape(), gen, value.Data())
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the table of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := kv.Info()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

// parseKeyValue parses [key] [elements...] with the configured shape
func parseKeyValue(args []string, ctx tensor.Context) (db.Key, *tensor.Dense, error) {
	key, err := util.ParseKey(args[0])
	if err != nil {
		return 0, nil, err
	}
	shape := viper.GetString("shape")
	if shape == "" {
		shape = fmt.Sprint(len(args) - 1)
	}
	value, err := util.ParseTensor(shape, args[1:], ctx)
	if err != nil {
		return 0, nil, err
	}
	return db.Key(key), value, nil
}
