package s3

import (
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/sirupsen/logrus"
)

// SessionConfig describes how to reach an AWS-compatible endpoint.
type SessionConfig struct {
	Profile        string
	Region         string
	Endpoint       string
	Anonymous      bool
	ForcePathStyle bool
	Logger         logrus.FieldLogger
}

type logrusProxy struct {
	logger logrus.FieldLogger
}

func (l logrusProxy) Log(args ...interface{}) {
	l.logger.WithField("client", "aws").Debug(args...)
}

// NewSession returns a session using NewSessionWithOptions meaning that it
// relies on the SDK defaults but also the user config files and environment.
//
// Anonymous sessions skip request signing, which is what the public PMC Open
// Access bucket expects. AWS_S3_FORCE_PATH_STYLE is not an SDK variable, it
// is honoured here for local S3 emulators.
func NewSession(config SessionConfig) (*session.Session, error) {
	options := session.Options{}
	if config.Profile != "" {
		options.Profile = config.Profile
	}
	if config.Region != "" {
		options.Config.WithRegion(config.Region)
	}
	if config.Endpoint != "" {
		options.Config.WithEndpoint(config.Endpoint)
	}
	if config.Anonymous {
		options.Config.WithCredentials(credentials.AnonymousCredentials)
	}
	forcePathStyle := config.ForcePathStyle
	if res, ok := os.LookupEnv("AWS_S3_FORCE_PATH_STYLE"); ok {
		forcePathStyle, _ = strconv.ParseBool(res)
	}
	if forcePathStyle {
		options.Config.WithS3ForcePathStyle(true)
	}
	if logrus.GetLevel() == logrus.DebugLevel {
		options.Config.WithCredentialsChainVerboseErrors(true)
	}
	if config.Logger != nil {
		options.Config.WithLogger(logrusProxy{logger: config.Logger})
	}
	return session.NewSessionWithOptions(options)
}
