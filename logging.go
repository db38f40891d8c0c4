package binmod

import "github.com/sirupsen/logrus"

// log is the package-level logger. Callers embedding this library can
// redirect it via logrus's own global configuration (SetOutput, SetLevel,
// AddHook, ...); it is deliberately not wrapped in a local interface so the
// full logrus API stays available.
var log = logrus.WithField("component", "binmod")

func moduleLogFields(name, namespace string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"module":    name,
		"namespace": namespace,
	})
}
