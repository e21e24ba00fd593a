// Command roscli is a thin command-line collaborator over the rosbridge
// package's public façade: it connects to a rosbridge server and prints
// topic/service/parameter introspection, the same "exercise the public
// API, hold no domain logic" role a library's accompanying CLI plays in
// the rest of the pack.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rocos-io/rosbridge-go"
)

var (
	host string
	port int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "roscli",
		Short: "Inspect a rosbridge server's topics, services, and parameters",
	}
	root.PersistentFlags().StringVar(&host, "host", "localhost", "rosbridge server host")
	root.PersistentFlags().IntVar(&port, "port", 9090, "rosbridge server port")

	root.AddCommand(newTopicCmd(), newServiceCmd(), newParamCmd())
	return root
}

func connect() (*rosbridge.RosSession, error) {
	s := rosbridge.NewSession(host, port)
	if err := s.Run(5 * time.Second); err != nil {
		return nil, fmt.Errorf("connect to %s:%d: %w", host, port, err)
	}
	return s, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func newTopicCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "topic", Short: "Topic introspection"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every advertised topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()
			topics, err := s.Topics()
			if err != nil {
				return err
			}
			return printJSON(topics)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "type <topic>",
		Short: "Print a topic's message type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()
			t, err := s.TopicType(args[0])
			if err != nil {
				return err
			}
			fmt.Println(t)
			return nil
		},
	})

	return cmd
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "service", Short: "Service introspection"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every advertised service",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()
			services, err := s.Services()
			if err != nil {
				return err
			}
			return printJSON(services)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "type <service>",
		Short: "Print a service's type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()
			t, err := s.ServiceType(args[0])
			if err != nil {
				return err
			}
			fmt.Println(t)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "call <service> <json-args>",
		Short: "Call a service with a JSON-encoded args object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload rosbridge.Value
			if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
				return fmt.Errorf("decode args: %w", err)
			}
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()
			result, err := s.Service(args[0], "").Call(payload)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	})

	return cmd
}

func newParamCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "param", Short: "Parameter server access"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every parameter name",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()
			names, err := s.Params()
			if err != nil {
				return err
			}
			return printJSON(names)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Print a parameter's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()
			v, err := s.Param(args[0]).Get()
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <json-value>",
		Short: "Set a parameter's value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v rosbridge.Value
			if err := json.Unmarshal([]byte(args[1]), &v); err != nil {
				return fmt.Errorf("decode value: %w", err)
			}
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Param(args[0]).Set(v)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a parameter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Param(args[0]).Delete()
		},
	})

	return cmd
}
