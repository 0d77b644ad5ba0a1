package kv

import (
	"errors"

	"github.com/ValentinKolb/tKV/cmd/util"
	"github.com/ValentinKolb/tKV/lib/kvstore"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/ValentinKolb/tKV/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcStore store.IStore
	kv       *kvstore.KVStore
	devices  []tensor.Context

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Work with the tensors of a tKV coordinator",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: teardownKVClient,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupRPCClientFlags(KeyValueCommands)

	KeyValueCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))
	KeyValueCommands.PersistentFlags().String("shape", "", util.WrapString("Shape of the value, e.g. 2,3 (default: a vector of all given elements)"))
	KeyValueCommands.PersistentFlags().Int("devices", 1, util.WrapString("Number of local CPU devices to register. A push sends one copy of the value per device"))

	KeyValueCommands.AddCommand(initCmd)
	KeyValueCommands.AddCommand(pushCmd)
	KeyValueCommands.AddCommand(pullCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient connects to the coordinator and registers the local devices
func setupKVClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	n := viper.GetInt("devices")
	if n < 1 {
		return errors.New("at least one device is required")
	}
	devices = make([]tensor.Context, n)
	for i := range devices {
		devices[i] = tensor.CPU(i)
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcStore, err = client.NewRPCStore(util.GetShardID(), *util.GetClientConfig(), t, s)
	if err != nil {
		return err
	}

	kv = kvstore.NewWithStore("cli", rpcStore, kvstore.WithFixedUpdater("the updater of a shard is configured with tkv serve --shards"))
	return kv.InitDevices(devices)
}

// teardownKVClient stops the kvstore and closes the connection
func teardownKVClient(_ *cobra.Command, _ []string) error {
	if kv != nil {
		_ = kv.Stop()
	}
	if rpcStore != nil {
		return rpcStore.Close()
	}
	return nil
}
