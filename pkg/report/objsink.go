package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/graymeta/stow"
	"github.com/sirupsen/logrus"

	"github.com/tarndt/flashbench/pkg/report/compress"
	"github.com/tarndt/flashbench/pkg/report/encrypt"
)

//ObjectSinkOptions controls how reports are encoded at rest
type ObjectSinkOptions struct {
	Compression compress.Mode
	Encryption  encrypt.Mode
	Key         []byte
}

func (opts ObjectSinkOptions) validate(kind string) error {
	switch {
	case opts.Compression == compress.ModeUnknown:
		return fmt.Errorf("unknown compression mode")
	case opts.Encryption == encrypt.ModeUnknown:
		return fmt.Errorf("unknown encryption mode")
	case opts.Compression != compress.ModeIdentity && !SupportsMetaData(kind):
		return fmt.Errorf("%s compression requires metadata which %s stores lack", opts.Compression, kind)
	case opts.Encryption != encrypt.ModeIdentity && !SupportsMetaData(kind):
		return fmt.Errorf("%s encryption requires metadata which %s stores lack", opts.Encryption, kind)
	case opts.Encryption != encrypt.ModeIdentity:
		return encrypt.ValidAESKey(opts.Key)
	}
	return nil
}

//ObjectSink uploads reports as JSON objects to any stow supported store,
// optionally compressed and then encrypted
type ObjectSink struct {
	loc       stow.Location
	container stow.Container
	opts      ObjectSinkOptions
	log       logrus.FieldLogger
}

var _ Sink = (*ObjectSink)(nil)

//NewObjectSink dials the store and opens (creating if needed) the named
// container. Compression and encryption require a store with item metadata support.
func NewObjectSink(kind string, cfg stow.Config, containerName string, opts ObjectSinkOptions, log logrus.FieldLogger) (*ObjectSink, error) {
	if err := opts.validate(kind); err != nil {
		return nil, fmt.Errorf("Could not create object sink: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	loc, err := NewStore(kind, cfg)
	if err != nil {
		return nil, err
	}

	container, err := findContainer(loc, containerName)
	if err != nil {
		loc.Close()
		return nil, err
	}
	if container == nil {
		if container, err = loc.CreateContainer(containerName); err != nil {
			loc.Close()
			return nil, fmt.Errorf("Could not create container %q: %w", containerName, err)
		}
		log.WithField("container", describeContainer(container)).Info("Created report container")
	}

	if opts.Encryption != encrypt.ModeIdentity {
		container = encrypt.NewEncryptedContainer(container, opts.Encryption, opts.Key)
	}
	if opts.Compression != compress.ModeIdentity {
		container = compress.NewReportContainer(container, opts.Compression)
	}
	return &ObjectSink{
		loc:       loc,
		container: container,
		opts:      opts,
		log:       log,
	}, nil
}

func findContainer(loc stow.Location, name string) (found stow.Container, err error) {
	err = stow.WalkContainers(loc, stow.NoPrefix, 100, func(container stow.Container, err error) error {
		if err != nil {
			return err
		}
		if container.Name() == name {
			found = container
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Could not list containers: %w", err)
	}
	return found, nil
}

//ItemName is the name a report is stored under, see compress.Mode.StoredName
// for the object name when compressed
func ItemName(rep *Report) string {
	return "flashbench-" + rep.Generated.UTC().Format("20060102T150405.000000000Z") + ".json"
}

//Publish fufills Sink
func (sink *ObjectSink) Publish(ctx context.Context, rep *Report) error {
	_, err := sink.Upload(ctx, rep)
	return err
}

//Upload stores the report and returns the created item
func (sink *ObjectSink) Upload(ctx context.Context, rep *Report) (stow.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := rep.WriteJSON(&buf); err != nil {
		return nil, err
	}

	size := int64(buf.Len())
	item, err := sink.container.Put(ItemName(rep), &buf, size, nil)
	if err != nil {
		return nil, fmt.Errorf("Could not upload report to %s: %w", describeContainer(sink.container), err)
	}
	sink.log.WithFields(logrus.Fields{"item": describeItem(item), "bytes": size, "compression": sink.opts.Compression, "encryption": sink.opts.Encryption}).Info("Uploaded report")
	return item, nil
}

//Fetch downloads a previously uploaded report by its ItemName
func (sink *ObjectSink) Fetch(ctx context.Context, name string) (*Report, error) {
	var found stow.Item
	err := stow.Walk(sink.container, stow.NoPrefix, 100, func(item stow.Item, err error) error {
		if err != nil {
			return err
		}
		if itemName := sink.opts.Compression.ReportName(item.Name()); strings.HasSuffix(itemName, name) {
			found = item
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("Could not list %s: %w", describeContainer(sink.container), err)
	}
	if found == nil {
		return nil, fmt.Errorf("Could not find report %q in %s", name, describeContainer(sink.container))
	}

	rdr, err := found.Open()
	if err != nil {
		return nil, fmt.Errorf("Could not open %s: %w", describeItem(found), err)
	}
	defer rdr.Close()

	var rep Report
	if err = json.NewDecoder(rdr).Decode(&rep); err != nil {
		return nil, fmt.Errorf("Could not decode %s: %w", describeItem(found), err)
	}
	return &rep, nil
}

//Close fufills Sink
func (sink *ObjectSink) Close() error {
	return sink.loc.Close()
}
