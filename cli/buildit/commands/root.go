package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/buildit-dev/buildit/cli/buildit/cli"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/version"
	"github.com/buildit-dev/buildit/server/api/rest/client"
)

const (
	DefaultConfigDir = "~/"
	ConfigFileName   = ".buildit"
	DefaultEndpoint  = "http://localhost:8080"
)

var (
	defaultConfigFilePath = fmt.Sprintf("%s%s.yml", DefaultConfigDir, ConfigFileName)
)

type GlobalConfig struct {
	Endpoint       string
	Token          string
	ChatCredential string
	Debug          bool
	JSON           bool
	ConfigFilePath string
}

var Global = &GlobalConfig{}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVarP(
		&Global.ConfigFilePath,
		"config",
		"c",
		defaultConfigFilePath,
		"The config file to use when executing commands.")

	RootCmd.PersistentFlags().StringVarP(
		&Global.Endpoint,
		"endpoint",
		"e",
		"",
		"The endpoint of the BuildIt coordinator's REST API.")

	RootCmd.PersistentFlags().StringVar(
		&Global.Token,
		"token",
		"",
		"A submitter JWT, as minted by the token exchange. Required for pipeline new and job restart.")

	RootCmd.PersistentFlags().StringVar(
		&Global.ChatCredential,
		"chat_credential",
		"",
		"The chat bridge credential, an alternative to --token for submissions.")

	RootCmd.PersistentFlags().BoolVarP(
		&Global.Debug,
		"debug",
		"d",
		false,
		"Enable verbose debug output.")

	RootCmd.PersistentFlags().BoolVarP(
		&Global.JSON,
		"json",
		"j",
		false,
		"Enable structured JSON output.")
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cli.Exit(RootCmd.Execute())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if Global.ConfigFilePath != "" && Global.ConfigFilePath != defaultConfigFilePath {
		viper.SetConfigFile(Global.ConfigFilePath)
	} else {
		viper.SetConfigName(ConfigFileName)
		viper.AddConfigPath(DefaultConfigDir)
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("BUILDIT")
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	err := viper.ReadInConfig()
	if err == nil {
		Global.ConfigFilePath = viper.ConfigFileUsed()
		if Global.Debug {
			cli.Stderr.Printf("Using config file: %s", viper.ConfigFileUsed())
		}
	} else {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
		default:
			cli.Exit(fmt.Errorf("error loading config file (%s): %s", viper.ConfigFileUsed(), err))
		}
	}
}

var RootCmd = &cobra.Command{
	Use:     "buildit",
	Short:   "BuildIt",
	Long:    `BuildIt coordinator administration`,
	Version: version.VersionToString(),
}

// LogFactory returns the factory CLI commands wire dependencies with; quiet
// unless --debug is set.
func LogFactory() logger.LogFactory {
	if !Global.Debug {
		return logger.NoOpLogFactory
	}
	registry, err := logger.NewLogRegistry("")
	if err != nil {
		cli.Exit(err)
	}
	return logger.MakeLogrusLogFactoryStdOutPlain(registry)
}

// NewAPIClient builds a coordinator client from the flags, config file and
// BUILDIT_* environment, in that order of precedence.
func NewAPIClient() (*client.APIClient, error) {
	endpoint := Global.Endpoint
	if endpoint == "" {
		endpoint = viper.GetString("endpoint")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	token := Global.Token
	if token == "" {
		token = viper.GetString("token")
	}
	chatCredential := Global.ChatCredential
	if chatCredential == "" {
		chatCredential = viper.GetString("chat_credential")
	}
	var authenticator client.Authenticator
	if token != "" {
		authenticator = client.NewBearerTokenAuthenticator(token)
	} else if chatCredential != "" {
		authenticator = client.NewChatCredentialAuthenticator(chatCredential)
	}
	return client.NewAPIClient(endpoint, authenticator, LogFactory())
}

// PrintJSON renders any document as indented JSON on stdout.
func PrintJSON(doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	cli.Stdout.Print(string(data))
	return nil
}
