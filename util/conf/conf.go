package conf

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Conf is an ordered list of values, one per line. Order is significant:
// label files rebuild action ids from it.
type Conf struct {
	Values []string
}

func Read(reader io.Reader) (*Conf, error) {
	scanner := bufio.NewScanner(reader)
	retval := make([]string, 0, 64)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) > 0 && line[0] != '#' {
			retval = append(retval, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading conf")
	}
	return &Conf{retval}, nil
}

func ReadFile(filename string) (*Conf, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer file.Close()
	return Read(file)
}

func (c *Conf) Write(writer io.Writer) error {
	w := bufio.NewWriter(writer)
	for _, v := range c.Values {
		if _, err := w.WriteString(v + "\n"); err != nil {
			return errors.Wrap(err, "writing conf")
		}
	}
	return w.Flush()
}

func (c *Conf) WriteFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filename)
	}
	defer file.Close()
	return c.Write(file)
}
