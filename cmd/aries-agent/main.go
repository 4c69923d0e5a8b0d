/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package aries-agent runs a DIDComm agent with its controller REST API.
//
//
// Terms Of Service:
//
//
//     Schemes: https
//     Version: 0.1.0
//     License: SPDX-License-Identifier: Apache-2.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
// swagger:meta
package main

import (
	"fmt"
	"net/http"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/spf13/cobra"

	"github.com/hyperledger/aries-agent-go/cmd/aries-agent/startcmd"
)

const rootCmdName = "aries-agent"

var logger = log.New("aries-agent/agent")

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// newRootCmd returns the root command; its start subcommand serves the agent API with srv.
func newRootCmd(srv server) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   rootCmdName,
		Short: "DIDComm agent",
		Long:  "Runs a DIDComm agent: connections, mediation and message pickup behind a controller REST API",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	startCmd, err := startcmd.Cmd(srv)
	if err != nil {
		return nil, fmt.Errorf("create start command: %w", err)
	}

	rootCmd.AddCommand(startCmd)

	return rootCmd, nil
}

func main() {
	rootCmd, err := newRootCmd(&startcmd.HTTPServer{})
	if err != nil {
		logger.Fatalf("%s", err)
	}

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run %s: %s", rootCmdName, err)
	}
}
