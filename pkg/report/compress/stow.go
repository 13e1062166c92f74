package compress

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/graymeta/stow"

	"github.com/tarndt/flashbench/pkg/util/strms"
)

//Metadata keys recorded on compressed reports
const (
	MetaAlgo       = "x-flashbench-report-cmp"
	MetaReportSize = "x-flashbench-report-bytes"
)

//reportContainer compresses whole reports in memory before upload so stores
// always receive an exact object size
type reportContainer struct {
	stow.Container
	mode Mode
}

var _ stow.Container = reportContainer{}

//NewReportContainer wraps container so reports put into it are stored
// compressed under StoredName and read back decompressed. The underlying store
// must support item metadata.
func NewReportContainer(container stow.Container, mode Mode) stow.Container {
	return reportContainer{Container: container, mode: mode}
}

//StoredName is the object name a report called name is kept under
func (m Mode) StoredName(name string) string {
	return name + m.Ext()
}

//ReportName reverses StoredName
func (m Mode) ReportName(stored string) string {
	return strings.TrimSuffix(stored, m.Ext())
}

func (cont reportContainer) Item(id string) (stow.Item, error) {
	item, err := cont.Container.Item(id)
	if err != nil || item == nil {
		return item, err
	}
	return reportItem{item}, nil
}

func (cont reportContainer) Items(prefix, cursor string, count int) ([]stow.Item, string, error) {
	items, next, err := cont.Container.Items(prefix, cursor, count)
	for i, item := range items {
		items[i] = reportItem{item}
	}
	return items, next, err
}

//Put compresses the report body and uploads it with its original size recorded
func (cont reportContainer) Put(name string, rdr io.Reader, size int64, metadata map[string]interface{}) (stow.Item, error) {
	if cont.mode == ModeIdentity {
		return cont.Container.Put(name, rdr, size, metadata)
	}

	var body bytes.Buffer
	wtr, err := cont.mode.NewWriter(&body)
	if err != nil {
		return nil, fmt.Errorf("Could not create %s report compressor: %w", cont.mode, err)
	}
	read, err := io.Copy(wtr, rdr)
	if err != nil {
		wtr.Close()
		return nil, fmt.Errorf("Could not %s compress report %q: %w", cont.mode, name, err)
	}
	if err = wtr.Close(); err != nil {
		return nil, fmt.Errorf("Could not finish %s compression of report %q: %w", cont.mode, name, err)
	}
	if size >= 0 && read != size {
		return nil, fmt.Errorf("Report %q was %d bytes but %d were expected", name, read, size)
	}

	md := make(map[string]interface{}, len(metadata)+2)
	for key, val := range metadata {
		md[key] = val
	}
	md[MetaAlgo] = cont.mode.AlgoName()
	md[MetaReportSize] = strconv.FormatInt(read, 10)

	item, err := cont.Container.Put(cont.mode.StoredName(name), &body, int64(body.Len()), md)
	if err != nil {
		return nil, err
	}
	return reportItem{item}, nil
}

type reportItem struct {
	stow.Item
}

var _ stow.Item = reportItem{}

//metaString looks up a string metadata value, found is false when key is absent
func metaString(md map[string]interface{}, key string) (val string, found bool, err error) {
	raw, found := md[key]
	if !found {
		return "", false, nil
	}
	if val, isString := raw.(string); isString {
		return val, true, nil
	}
	return "", true, fmt.Errorf("report metadata %q was a %T not a string", key, raw)
}

//mode is the compression the item was stored with, identity when unrecorded
func (item reportItem) mode() (Mode, map[string]interface{}, error) {
	md, err := item.Metadata()
	if err != nil {
		return ModeUnknown, nil, fmt.Errorf("Could not read metadata of report %q: %w", item.Name(), err)
	}
	algo, found, err := metaString(md, MetaAlgo)
	switch {
	case err != nil:
		return ModeUnknown, nil, err
	case !found:
		return ModeIdentity, md, nil
	}
	mode := ModeFromName(algo)
	if mode == ModeUnknown {
		return ModeUnknown, nil, fmt.Errorf("Report %q was stored with unsupported compression %q", item.Name(), algo)
	}
	return mode, md, nil
}

//Size is the size of the uncompressed report
func (item reportItem) Size() (int64, error) {
	mode, md, err := item.mode()
	switch {
	case err != nil:
		return 0, err
	case mode == ModeIdentity:
		return item.Item.Size()
	}

	sizeStr, found, err := metaString(md, MetaReportSize)
	switch {
	case err != nil:
		return 0, err
	case !found:
		return 0, fmt.Errorf("Report %q is %s compressed but its size was not recorded", item.Name(), mode)
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("Report %q recorded size %q is not an integer: %w", item.Name(), sizeStr, err)
	}
	return size, nil
}

//Open streams the decompressed report
func (item reportItem) Open() (io.ReadCloser, error) {
	mode, _, err := item.mode()
	if err != nil {
		return nil, err
	}

	itemRdr, err := item.Item.Open()
	if mode == ModeIdentity || err != nil {
		return itemRdr, err
	}
	decompRdr, err := mode.NewReader(itemRdr)
	if err != nil {
		itemRdr.Close()
		return nil, fmt.Errorf("Could not create %s decompressor for report %q: %w", mode, item.Name(), err)
	}
	return strms.NewReadFirstCloseList(decompRdr, itemRdr), nil
}
