package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadDotenv merges a dotenv file (normally $FOREMAN_PATH/.env, where
// provider API keys live) into the process environment. Variables
// already set in the environment win over the file, so a deployment
// can always override what the file ships. A missing file is fine.
func LoadDotenv(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := parseEnvLine(sc.Text())
		if !ok {
			continue
		}
		if _, defined := os.LookupEnv(key); defined {
			continue
		}
		os.Setenv(key, value)
	}
	return sc.Err()
}

// parseEnvLine extracts KEY=VALUE from one dotenv line. Blank lines,
// comments, and lines without = yield ok=false. A leading "export "
// and matching quotes around the value are removed.
func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		if q := value[0]; (q == '"' || q == '\'') && value[len(value)-1] == q {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, key != ""
}
