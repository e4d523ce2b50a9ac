package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hangyeol-kang/d3RW/client"
	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "d3rwc",
	Short: "d3 remote client",
}

func connectD3() *d3.Client {
	return client.D3(viper.GetString("host"), viper.GetInt("port"))
}

func connectGRPC() *client.Conn {
	c, err := client.New(viper.GetString("grpc"))
	if err != nil {
		panic(err)
	}
	return c
}

// printJSON writes every item of list as one JSON line.
func printJSON[T any](list []T) error {
	enc := json.NewEncoder(os.Stdout)
	for _, item := range list {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("host", "127.0.0.1", "ip address of the d3 director")
	rootCmd.PersistentFlags().Int("port", 80, "port of the d3 api")
	rootCmd.PersistentFlags().String("grpc", "", "address of the d3rw grpc server")
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("grpc", rootCmd.PersistentFlags().Lookup("grpc"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("D3RW")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
