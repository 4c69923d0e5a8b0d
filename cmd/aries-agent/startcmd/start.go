/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go-ext/component/storage/couchdb"
	"github.com/hyperledger/aries-framework-go-ext/component/storage/mongodb"
	"github.com/hyperledger/aries-framework-go-ext/component/storage/mysql"
	"github.com/hyperledger/aries-framework-go-ext/component/storage/postgresql"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storage/leveldb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/hyperledger/aries-agent-go/pkg/controller"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	arieshttp "github.com/hyperledger/aries-agent-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport/ws"
	"github.com/hyperledger/aries-agent-go/pkg/framework/aries"
)

const (
	// api host flag.
	agentHostFlagName      = "api-host"
	agentHostEnvKey        = "ARIESD_API_HOST"
	agentHostFlagShorthand = "a"
	agentHostFlagUsage     = "Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + agentHostEnvKey

	// api token flag.
	agentTokenFlagName      = "api-token"
	agentTokenEnvKey        = "ARIESD_API_TOKEN" // nolint:gosec
	agentTokenFlagShorthand = "t"
	agentTokenFlagUsage     = "Check for bearer token in the authorization header (optional)." +
		" Alternatively, this can be set with the following environment variable: " + agentTokenEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "ARIESD_DATABASE_TYPE"
	databaseTypeFlagShorthand = "q"
	databaseTypeFlagUsage     = "The type of database to use for connections, mediations and queued messages. " +
		"Supported options: mem, leveldb, couchdb, mysql, mongodb, postgresql. " +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databaseURLFlagName      = "database-url"
	databaseURLEnvKey        = "ARIESD_DATABASE_URL"
	databaseURLFlagShorthand = "v"
	databaseURLFlagUsage     = "The URL of the database. Not needed if using memstore." +
		" For leveldb, this is the path of the database directory." +
		" For CouchDB, include the username:password@ text if required. " +
		" Alternatively, this can be set with the following environment variable: " + databaseURLEnvKey

	databasePrefixFlagName      = "database-prefix"
	databasePrefixEnvKey        = "ARIESD_DATABASE_PREFIX"
	databasePrefixFlagShorthand = "u"
	databasePrefixFlagUsage     = "An optional prefix to be used when creating and retrieving underlying databases. " +
		" Alternatively, this can be set with the following environment variable: " + databasePrefixEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutFlagUsage = "Total time in seconds to wait until the db is available before giving up." +
		" Default: " + databaseTimeoutDefault + " seconds." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey
	databaseTimeoutEnvKey  = "ARIESD_DATABASE_TIMEOUT"
	databaseTimeoutDefault = "30"

	// webhook url flag.
	agentWebhookFlagName      = "webhook-url"
	agentWebhookEnvKey        = "ARIESD_WEBHOOK_URL"
	agentWebhookFlagShorthand = "w"
	agentWebhookFlagUsage     = "URL to send notifications to." +
		" This flag can be repeated, allowing for multiple listeners." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + agentWebhookEnvKey

	// default label flag.
	agentDefaultLabelFlagName      = "agent-default-label"
	agentDefaultLabelEnvKey        = "ARIESD_DEFAULT_LABEL"
	agentDefaultLabelFlagShorthand = "l"
	agentDefaultLabelFlagUsage     = "Default Label for this agent. Defaults to blank if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentDefaultLabelEnvKey

	// log level.
	agentLogLevelFlagName  = "log-level"
	agentLogLevelEnvKey    = "ARIESD_LOG_LEVEL"
	agentLogLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLogLevelEnvKey

	// outbound transport flag.
	agentOutboundTransportFlagName      = "outbound-transport"
	agentOutboundTransportEnvKey        = "ARIESD_OUTBOUND_TRANSPORT"
	agentOutboundTransportFlagShorthand = "o"
	agentOutboundTransportFlagUsage     = "Outbound transport type." +
		" This flag can be repeated, allowing for multiple transports." +
		" Possible values [http] [ws]. Defaults to http if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentOutboundTransportEnvKey

	agentTLSCertFileFlagName      = "tls-cert-file"
	agentTLSCertFileEnvKey        = "TLS_CERT_FILE"
	agentTLSCertFileFlagShorthand = "c"
	agentTLSCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSCertFileEnvKey

	agentTLSKeyFileFlagName      = "tls-key-file"
	agentTLSKeyFileEnvKey        = "TLS_KEY_FILE"
	agentTLSKeyFileFlagShorthand = "k"
	agentTLSKeyFileFlagUsage     = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSKeyFileEnvKey

	// inbound host url flag.
	agentInboundHostFlagName      = "inbound-host"
	agentInboundHostEnvKey        = "ARIESD_INBOUND_HOST"
	agentInboundHostFlagShorthand = "i"
	agentInboundHostFlagUsage     = "Inbound Host Name:Port. This is used internally to start the inbound server." +
		" Values should be in `scheme@url` format." +
		" This flag can be repeated, allowing to configure multiple inbound transports." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostEnvKey

	// inbound host external url flag.
	agentInboundHostExternalFlagName      = "inbound-host-external"
	agentInboundHostExternalEnvKey        = "ARIESD_INBOUND_HOST_EXTERNAL"
	agentInboundHostExternalFlagShorthand = "e"
	agentInboundHostExternalFlagUsage     = "Inbound Host External Name:Port and values should be in `scheme@url` format" +
		" This is the URL for the inbound server as seen externally." +
		" If not provided, then the internal inbound host will be used here." +
		" This flag can be repeated, allowing to configure multiple inbound transports." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostExternalEnvKey

	// auto accept flag.
	agentAutoAcceptFlagName  = "auto-accept"
	agentAutoAcceptEnvKey    = "ARIESD_AUTO_ACCEPT"
	agentAutoAcceptFlagUsage = "Auto accept connection invitations and requests." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentAutoAcceptEnvKey

	// auto grant mediation flag.
	agentAutoGrantFlagName  = "auto-grant-mediation"
	agentAutoGrantEnvKey    = "ARIESD_AUTO_GRANT_MEDIATION"
	agentAutoGrantFlagUsage = "Grant every mediation request received." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentAutoGrantEnvKey

	// mediator invitation flag.
	agentMediatorInvitationFlagName  = "mediator-invitation-url"
	agentMediatorInvitationEnvKey    = "ARIESD_MEDIATOR_INVITATION_URL"
	agentMediatorInvitationFlagUsage = "Invitation URL of a mediator to connect to on start and use as default mediator." +
		" Alternatively, this can be set with the following environment variable: " + agentMediatorInvitationEnvKey

	// default mediator flag.
	agentDefaultMediatorFlagName  = "default-mediator-id"
	agentDefaultMediatorEnvKey    = "ARIESD_DEFAULT_MEDIATOR_ID"
	agentDefaultMediatorFlagUsage = "ID of a granted mediation to use as default mediator." +
		" Alternatively, this can be set with the following environment variable: " + agentDefaultMediatorEnvKey

	// clear default mediator flag.
	agentClearDefaultMediatorFlagName  = "clear-default-mediator"
	agentClearDefaultMediatorEnvKey    = "ARIESD_CLEAR_DEFAULT_MEDIATOR"
	agentClearDefaultMediatorFlagUsage = "Clear the default mediator on start." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentClearDefaultMediatorEnvKey

	// session cache size flag.
	agentSessionCacheSizeFlagName  = "session-cache-size"
	agentSessionCacheSizeEnvKey    = "ARIESD_SESSION_CACHE_SIZE"
	agentSessionCacheSizeFlagUsage = "Maximum number of transport sessions kept for return routing." +
		" Alternatively, this can be set with the following environment variable: " + agentSessionCacheSizeEnvKey

	metricsPath = "/metrics"

	httpProtocol      = "http"
	websocketProtocol = "ws"

	databaseTypeMemOption        = "mem"
	databaseTypeLevelDBOption    = "leveldb"
	databaseTypeCouchDBOption    = "couchdb"
	databaseTypeMYSQLDBOption    = "mysql"
	databaseTypeMongoDBOption    = "mongodb"
	databaseTypePostgreSQLOption = "postgresql"
)

var (
	errMissingHost = errors.New("host not provided")
	logger         = log.New("aries-agent/agent")
)

// AgentParameters holds the configuration of the agent started by the start command.
type AgentParameters struct {
	server                                     server
	host, defaultLabel                         string
	tlsCertFile, tlsKeyFile                    string
	token                                      string
	webhookURLs, outboundTransports            []string
	inboundHostInternals, inboundHostExternals []string
	autoAccept, autoGrantMediation             bool
	mediatorInvitationURL, defaultMediatorID   string
	clearDefaultMediator                       bool
	sessionCacheSize                           int
	dbParam                                    *dbParam
}

type dbParam struct {
	dbType  string
	url     string
	prefix  string
	timeout uint64
}

// nolint:gochecknoglobals
var supportedStorageProviders = map[string]func(url, prefix string) (storage.Provider, error){
	databaseTypeMemOption: func(_, _ string) (storage.Provider, error) { // nolint:unparam
		return mem.NewProvider(), nil
	},
	databaseTypeLevelDBOption: func(path, _ string) (storage.Provider, error) { // nolint:unparam
		return leveldb.NewProvider(path), nil
	},
	databaseTypeCouchDBOption: func(url, prefix string) (storage.Provider, error) {
		return couchdb.NewProvider(url, couchdb.WithDBPrefix(prefix))
	},
	databaseTypeMYSQLDBOption: func(url, prefix string) (storage.Provider, error) {
		return mysql.NewProvider(url, mysql.WithDBPrefix(prefix))
	},
	databaseTypeMongoDBOption: func(url, prefix string) (storage.Provider, error) {
		return mongodb.NewProvider(url, mongodb.WithDBPrefix(prefix))
	},
	databaseTypePostgreSQLOption: func(url, prefix string) (storage.Provider, error) {
		return postgresql.NewProvider(url, postgresql.WithDBPrefix(prefix))
	},
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router)
	}

	return http.ListenAndServe(host, router) //nolint:gosec
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCMD(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCMD(server server) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start an agent",
		Long:  `Start an Aries agent and its controller API`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := NewAgentParameters(server, cmd)
			if err != nil {
				return err
			}

			return startAgent(parameters)
		},
	}
}

// NewAgentParameters reads the agent configuration from the flags of cmd, falling back to the environment.
func NewAgentParameters(server server, cmd *cobra.Command) (*AgentParameters, error) { //nolint:funlen,gocyclo
	if cmd == nil {
		cmd = &cobra.Command{}
		createFlags(cmd)
	}

	// log level
	logLevel, err := getUserSetVar(cmd, agentLogLevelFlagName, agentLogLevelEnvKey, true)
	if err != nil {
		return nil, err
	}

	err = setLogLevel(logLevel)
	if err != nil {
		return nil, err
	}

	host, err := getUserSetVar(cmd, agentHostFlagName, agentHostEnvKey, false)
	if err != nil {
		return nil, err
	}

	token, err := getUserSetVar(cmd, agentTokenFlagName, agentTokenEnvKey, true)
	if err != nil {
		return nil, err
	}

	inboundHosts, err := getUserSetVars(cmd, agentInboundHostFlagName, agentInboundHostEnvKey, true)
	if err != nil {
		return nil, err
	}

	inboundHostExternals, err := getUserSetVars(cmd, agentInboundHostExternalFlagName,
		agentInboundHostExternalEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbParam, err := getDBParam(cmd)
	if err != nil {
		return nil, err
	}

	defaultLabel, err := getUserSetVar(cmd, agentDefaultLabelFlagName, agentDefaultLabelEnvKey, true)
	if err != nil {
		return nil, err
	}

	autoAccept, err := getBoolValue(cmd, agentAutoAcceptFlagName, agentAutoAcceptEnvKey)
	if err != nil {
		return nil, err
	}

	autoGrant, err := getBoolValue(cmd, agentAutoGrantFlagName, agentAutoGrantEnvKey)
	if err != nil {
		return nil, err
	}

	webhookURLs, err := getUserSetVars(cmd, agentWebhookFlagName, agentWebhookEnvKey, true)
	if err != nil {
		return nil, err
	}

	outboundTransports, err := getUserSetVars(cmd, agentOutboundTransportFlagName,
		agentOutboundTransportEnvKey, true)
	if err != nil {
		return nil, err
	}

	tlsCertFile, err := getUserSetVar(cmd, agentTLSCertFileFlagName, agentTLSCertFileEnvKey, true)
	if err != nil {
		return nil, err
	}

	tlsKeyFile, err := getUserSetVar(cmd, agentTLSKeyFileFlagName, agentTLSKeyFileEnvKey, true)
	if err != nil {
		return nil, err
	}

	mediatorInvitationURL, err := getUserSetVar(cmd, agentMediatorInvitationFlagName,
		agentMediatorInvitationEnvKey, true)
	if err != nil {
		return nil, err
	}

	defaultMediatorID, err := getUserSetVar(cmd, agentDefaultMediatorFlagName, agentDefaultMediatorEnvKey, true)
	if err != nil {
		return nil, err
	}

	clearDefaultMediator, err := getBoolValue(cmd, agentClearDefaultMediatorFlagName,
		agentClearDefaultMediatorEnvKey)
	if err != nil {
		return nil, err
	}

	sessionCacheSize, err := getSessionCacheSize(cmd)
	if err != nil {
		return nil, err
	}

	return &AgentParameters{
		server:                server,
		host:                  host,
		token:                 token,
		inboundHostInternals:  inboundHosts,
		inboundHostExternals:  inboundHostExternals,
		dbParam:               dbParam,
		defaultLabel:          defaultLabel,
		webhookURLs:           webhookURLs,
		outboundTransports:    outboundTransports,
		autoAccept:            autoAccept,
		autoGrantMediation:    autoGrant,
		mediatorInvitationURL: mediatorInvitationURL,
		defaultMediatorID:     defaultMediatorID,
		clearDefaultMediator:  clearDefaultMediator,
		sessionCacheSize:      sessionCacheSize,
		tlsCertFile:           tlsCertFile,
		tlsKeyFile:            tlsKeyFile,
	}, nil
}

func getDBParam(cmd *cobra.Command) (*dbParam, error) {
	dbParam := &dbParam{}

	var err error

	dbParam.dbType, err = getUserSetVar(cmd, databaseTypeFlagName, databaseTypeEnvKey, false)
	if err != nil {
		return nil, err
	}

	dbParam.url, err = getUserSetVar(cmd, databaseURLFlagName, databaseURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbParam.prefix, err = getUserSetVar(cmd, databasePrefixFlagName, databasePrefixEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbTimeout, err := getUserSetVar(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbTimeout == "" || dbTimeout == "0" {
		dbTimeout = databaseTimeoutDefault
	}

	t, err := strconv.Atoi(dbTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db timeout %s: %w", dbTimeout, err)
	}

	dbParam.timeout = uint64(t)

	return dbParam, nil
}

func getBoolValue(cmd *cobra.Command, flagName, envKey string) (bool, error) {
	v, err := getUserSetVar(cmd, flagName, envKey, true)
	if err != nil {
		return false, err
	}

	if v == "" {
		return false, nil
	}

	return strconv.ParseBool(v)
}

func getSessionCacheSize(cmd *cobra.Command) (int, error) {
	v, err := getUserSetVar(cmd, agentSessionCacheSizeFlagName, agentSessionCacheSizeEnvKey, true)
	if err != nil {
		return 0, err
	}

	if v == "" {
		return 0, nil
	}

	size, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse session cache size %s: %w", v, err)
	}

	return size, nil
}

func createFlags(startCmd *cobra.Command) {
	// agent host flag
	startCmd.Flags().StringP(agentHostFlagName, agentHostFlagShorthand, "", agentHostFlagUsage)

	// agent token flag
	startCmd.Flags().StringP(agentTokenFlagName, agentTokenFlagShorthand, "", agentTokenFlagUsage)

	// inbound host flag
	startCmd.Flags().StringSliceP(agentInboundHostFlagName, agentInboundHostFlagShorthand, []string{},
		agentInboundHostFlagUsage)

	// inbound external host flag
	startCmd.Flags().StringSliceP(agentInboundHostExternalFlagName, agentInboundHostExternalFlagShorthand,
		[]string{}, agentInboundHostExternalFlagUsage)

	// db type
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)

	// db url
	startCmd.Flags().StringP(databaseURLFlagName, databaseURLFlagShorthand, "", databaseURLFlagUsage)

	// db prefix
	startCmd.Flags().StringP(databasePrefixFlagName, databasePrefixFlagShorthand, "", databasePrefixFlagUsage)

	// db timeout
	startCmd.Flags().StringP(databaseTimeoutFlagName, "", "", databaseTimeoutFlagUsage)

	// webhook url flag
	startCmd.Flags().StringSliceP(agentWebhookFlagName, agentWebhookFlagShorthand, []string{}, agentWebhookFlagUsage)

	// log level
	startCmd.Flags().StringP(agentLogLevelFlagName, "", "", agentLogLevelFlagUsage)

	// agent default label flag
	startCmd.Flags().StringP(agentDefaultLabelFlagName, agentDefaultLabelFlagShorthand, "",
		agentDefaultLabelFlagUsage)

	// agent outbound transport flag
	startCmd.Flags().StringSliceP(agentOutboundTransportFlagName, agentOutboundTransportFlagShorthand, []string{},
		agentOutboundTransportFlagUsage)

	// auto accept flag
	startCmd.Flags().StringP(agentAutoAcceptFlagName, "", "", agentAutoAcceptFlagUsage)

	// auto grant mediation flag
	startCmd.Flags().StringP(agentAutoGrantFlagName, "", "", agentAutoGrantFlagUsage)

	// mediator flags
	startCmd.Flags().StringP(agentMediatorInvitationFlagName, "", "", agentMediatorInvitationFlagUsage)
	startCmd.Flags().StringP(agentDefaultMediatorFlagName, "", "", agentDefaultMediatorFlagUsage)
	startCmd.Flags().StringP(agentClearDefaultMediatorFlagName, "", "", agentClearDefaultMediatorFlagUsage)

	// session cache size flag
	startCmd.Flags().StringP(agentSessionCacheSizeFlagName, "", "", agentSessionCacheSizeFlagUsage)

	// tls cert file
	startCmd.Flags().StringP(agentTLSCertFileFlagName,
		agentTLSCertFileFlagShorthand, "", agentTLSCertFileFlagUsage)

	// tls key file
	startCmd.Flags().StringP(agentTLSKeyFileFlagName,
		agentTLSKeyFileFlagShorthand, "", agentTLSKeyFileFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string, isOptional bool) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	var values []string

	if isSet {
		values = strings.Split(value, ",")
	}

	if isOptional || isSet {
		return values, nil
	}

	return nil, fmt.Errorf(" %s not set. "+
		"It must be set via either command line or environment variable", flagName)
}

func getOutboundTransportOpts(outboundTransports []string) ([]aries.Option, error) {
	var opts []aries.Option

	var transports []transport.OutboundTransport

	for _, outboundTransport := range outboundTransports {
		switch outboundTransport {
		case httpProtocol:
			outbound, err := arieshttp.NewOutbound(arieshttp.WithOutboundHTTPClient(&http.Client{}))
			if err != nil {
				return nil, fmt.Errorf("http outbound transport initialization failed: %w", err)
			}

			transports = append(transports, outbound)
		case websocketProtocol:
			transports = append(transports, ws.NewOutbound())
		default:
			return nil, fmt.Errorf("outbound transport [%s] not supported", outboundTransport)
		}
	}

	if len(transports) > 0 {
		opts = append(opts, aries.WithOutboundTransports(transports...))
	}

	return opts, nil
}

func getInboundTransportOpts(inboundHostInternals, inboundHostExternals []string) ([]aries.Option, error) {
	internalHost, err := getInboundSchemeToURLMap(inboundHostInternals)
	if err != nil {
		return nil, fmt.Errorf("inbound internal host : %w", err)
	}

	externalHost, err := getInboundSchemeToURLMap(inboundHostExternals)
	if err != nil {
		return nil, fmt.Errorf("inbound external host : %w", err)
	}

	for scheme := range internalHost {
		if scheme != httpProtocol && scheme != websocketProtocol {
			return nil, fmt.Errorf("inbound transport [%s] not supported", scheme)
		}
	}

	var inbounds []transport.InboundTransport

	// http first: the first inbound transport provides the endpoint of invitations
	for _, scheme := range []string{httpProtocol, websocketProtocol} {
		host, ok := internalHost[scheme]
		if !ok {
			continue
		}

		external := externalHost[scheme]
		if external == "" {
			external = scheme + "://" + host
		}

		var inbound transport.InboundTransport

		if scheme == httpProtocol {
			inbound, err = arieshttp.NewInbound(host, external)
		} else {
			inbound, err = ws.NewInbound(host, external)
		}

		if err != nil {
			return nil, fmt.Errorf("%s inbound transport initialization failed: %w", scheme, err)
		}

		inbounds = append(inbounds, inbound)
	}

	if len(inbounds) == 0 {
		return nil, nil
	}

	return []aries.Option{aries.WithInboundTransport(inbounds...)}, nil
}

func getInboundSchemeToURLMap(schemeHostStr []string) (map[string]string, error) {
	const validSliceLen = 2

	schemeHostMap := make(map[string]string)

	for _, schemeHost := range schemeHostStr {
		schemeHostSlice := strings.Split(schemeHost, "@")
		if len(schemeHostSlice) != validSliceLen {
			return nil, fmt.Errorf("invalid inbound host option: Use scheme@url to pass the option")
		}

		schemeHostMap[schemeHostSlice[0]] = schemeHostSlice[1]
	}

	return schemeHostMap, nil
}

func getMediatorOpts(parameters *AgentParameters) []aries.Option {
	var opts []aries.Option

	if parameters.mediatorInvitationURL != "" {
		opts = append(opts, aries.WithMediatorConnectionsInvite(parameters.mediatorInvitationURL))
	}

	if parameters.defaultMediatorID != "" {
		opts = append(opts, aries.WithDefaultMediatorID(parameters.defaultMediatorID))
	}

	if parameters.clearDefaultMediator {
		opts = append(opts, aries.WithClearDefaultMediator())
	}

	return opts
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

func startAgent(parameters *AgentParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	framework, err := createAriesAgent(parameters, registry)
	if err != nil {
		return err
	}

	defer func() {
		if e := framework.Close(); e != nil {
			logger.Warnf("failed to close the agent: %s", e)
		}
	}()

	ctx, err := framework.Context()
	if err != nil {
		return fmt.Errorf("failed to start aries agent rest on port [%s], failed to get aries context : %w",
			parameters.host, err)
	}

	// get all HTTP REST API handlers available for controller API
	ctrl, err := controller.New(ctx, controller.WithWebhookURLs(parameters.webhookURLs...))
	if err != nil {
		return fmt.Errorf("failed to start aries agent rest on port [%s], failed to get rest service api :  %w",
			parameters.host, err)
	}

	defer ctrl.Close()

	router := mux.NewRouter()

	router.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()

	if parameters.token != "" {
		api.Use(authorizationMiddleware(parameters.token))
	}

	for _, handler := range ctrl.GetRESTHandlers() {
		api.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	logger.Infof("Starting aries agent rest on host [%s]", parameters.host)
	// start server on given port and serve using given handlers
	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead,
			},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	err = parameters.server.ListenAndServe(parameters.host, handler, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start aries agent rest on port [%s], cause:  %w", parameters.host, err)
	}

	return nil
}

func createAriesAgent(parameters *AgentParameters, registry prometheus.Registerer) (*aries.Aries, error) {
	var opts []aries.Option

	storePro, err := createStoreProviders(parameters)
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		aries.WithStoreProvider(storePro),
		aries.WithLabel(parameters.defaultLabel),
		aries.WithAutoAcceptConnections(parameters.autoAccept),
		aries.WithAutoGrantMediation(parameters.autoGrantMediation),
		aries.WithMetricsRegisterer(registry),
	)

	if parameters.sessionCacheSize != 0 {
		opts = append(opts, aries.WithSessionCacheSize(parameters.sessionCacheSize))
	}

	inboundTransportOpt, err := getInboundTransportOpts(parameters.inboundHostInternals,
		parameters.inboundHostExternals)
	if err != nil {
		return nil, fmt.Errorf("failed to start aries agent rest on port [%s], failed to inbound tranpsort opt : %w",
			parameters.host, err)
	}

	opts = append(opts, inboundTransportOpt...)

	outboundTransportOpts, err := getOutboundTransportOpts(parameters.outboundTransports)
	if err != nil {
		return nil, fmt.Errorf("failed to start aries agent rest on port [%s], failed to outbound transport opts : %w",
			parameters.host, err)
	}

	opts = append(opts, outboundTransportOpts...)
	opts = append(opts, getMediatorOpts(parameters)...)

	framework, err := aries.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start aries agent rest on port [%s], failed to initialize framework :  %w",
			parameters.host, err)
	}

	return framework, nil
}

func createStoreProviders(parameters *AgentParameters) (storage.Provider, error) {
	provider, supported := supportedStorageProviders[parameters.dbParam.dbType]
	if !supported {
		return nil, fmt.Errorf("key database type not set to a valid type." +
			" run start --help to see the available options")
	}

	var store storage.Provider

	err := backoff.RetryNotify(
		func() error {
			var openErr error
			store, openErr = provider(parameters.dbParam.url, parameters.dbParam.prefix)
			return openErr
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), parameters.dbParam.timeout),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to connect to storage, will sleep for %s before trying again : %s\n",
				t, retryErr)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage at %s : %w", parameters.dbParam.url, err)
	}

	return store, nil
}
