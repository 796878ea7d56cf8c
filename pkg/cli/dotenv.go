package cli

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger().WithField("package", "cli")

// LoadDotEnv loads the given env files (".env" when none is given) into the
// process environment. Variables that are already set win, and missing files
// are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			log.Debugf("no env file at %s", f)
			continue
		}
		if err != nil {
			return err
		}
		log.Debugf("loaded env file %s", f)
	}
	return nil
}
