/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	arieshttp "github.com/hyperledger/aries-agent-go/pkg/didcomm/transport/http"
)

func TestDefaultFramework(t *testing.T) {
	t.Run("test default framework - success", func(t *testing.T) {
		aries := &Aries{}

		err := defFrameworkOpts(aries)
		require.NoError(t, err)
		require.Len(t, aries.outboundTransports, 1)
		require.IsType(t, &arieshttp.OutboundHTTPClient{}, aries.outboundTransports[0])
		require.NotNil(t, aries.storeProvider)
		require.NotNil(t, aries.metricsRegisterer)
	})

	t.Run("test default framework - given options are kept", func(t *testing.T) {
		board := newSwitchboard()
		outbound := board.outbound()
		store := mem.NewProvider()
		registry := prometheus.NewRegistry()

		aries := &Aries{
			outboundTransports: []transport.OutboundTransport{outbound},
			storeProvider:      store,
			metricsRegisterer:  registry,
		}

		err := defFrameworkOpts(aries)
		require.NoError(t, err)
		require.Len(t, aries.outboundTransports, 1)
		require.Equal(t, outbound, aries.outboundTransports[0])
		require.Equal(t, store, aries.storeProvider)
		require.Equal(t, registry, aries.metricsRegisterer)
	})
}
