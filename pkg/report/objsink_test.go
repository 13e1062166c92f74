package report

import (
	"bytes"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/graymeta/stow"
	"github.com/graymeta/stow/local"
	"github.com/graymeta/stow/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/tarndt/flashbench/pkg/devices/testutil"
	"github.com/tarndt/flashbench/pkg/report/compress"
	"github.com/tarndt/flashbench/pkg/report/encrypt"
)

func s3Config(t *testing.T) stow.ConfigMap {
	srv := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
	t.Cleanup(srv.Close)
	return stow.ConfigMap{
		s3.ConfigEndpoint:    srv.URL,
		s3.ConfigAccessKeyID: "fake",
		s3.ConfigSecretKey:   "fake",
	}
}

func containerName() string {
	return "reports" + strconv.FormatInt(time.Now().UnixNano(), 36)
}

func TestObjectSink(t *testing.T) {
	tests := []struct {
		name string
		kind string
		cfg  func(t *testing.T) stow.ConfigMap
		opts ObjectSinkOptions
	}{
		{"s3-identity", KindS3, s3Config, ObjectSinkOptions{}},
		{"s3-s2", KindS3, s3Config, ObjectSinkOptions{Compression: compress.ModeS2}},
		{"s3-gzip", KindS3, s3Config, ObjectSinkOptions{Compression: compress.ModeGzip}},
		{"s3-aes-ctr", KindS3, s3Config, ObjectSinkOptions{Encryption: encrypt.ModeAESCTR, Key: testKey}},
		{"s3-s2-aes-ofb", KindS3, s3Config, ObjectSinkOptions{Compression: compress.ModeS2, Encryption: encrypt.ModeAESOFB, Key: testKey}},
		{"local-identity", KindLocal, func(t *testing.T) stow.ConfigMap {
			return stow.ConfigMap{local.ConfigKeyPath: t.TempDir()}
		}, ObjectSinkOptions{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := testutil.CreateContext(t)
			log, _ := test.NewNullLogger()
			cfg, name := tc.cfg(t), containerName()

			sink, err := NewObjectSink(tc.kind, cfg, name, tc.opts, log)
			require.NoError(t, err)

			rep := NewReport(testEpoch, sampleResult("fast", 0.001, false), sampleResult("slow", 0.003, true))
			item, err := sink.Upload(ctx, rep)
			require.NoError(t, err)
			require.Contains(t, item.Name(), tc.opts.Compression.StoredName(ItemName(rep)))

			var plain bytes.Buffer
			require.NoError(t, rep.WriteJSON(&plain))
			size, err := item.Size()
			require.NoError(t, err)
			require.EqualValues(t, plain.Len(), size, "size is of the uncompressed report")
			require.NoError(t, sink.Close())

			//a second sink finds the existing container rather than creating it
			sink, err = NewObjectSink(tc.kind, cfg, name, tc.opts, log)
			require.NoError(t, err)
			defer sink.Close()

			fetched, err := sink.Fetch(ctx, ItemName(rep))
			require.NoError(t, err)
			require.True(t, fetched.Generated.Equal(rep.Generated))
			require.Len(t, fetched.Results, 2)
			require.Equal(t, "slow", fetched.Results[1].Device.Label)
			require.True(t, fetched.Results[1].Tests[1].Mean.IsNaN())
			require.NotNil(t, fetched.Comparison)

			_, err = sink.Fetch(ctx, "absent.json")
			require.Error(t, err)
		})
	}
}

func TestObjectSinkRejectsOptions(t *testing.T) {
	localCfg := stow.ConfigMap{local.ConfigKeyPath: t.TempDir()}
	_, err := NewObjectSink(KindLocal, localCfg, containerName(), ObjectSinkOptions{Compression: compress.ModeS2}, nil)
	require.Error(t, err)
	_, err = NewObjectSink(KindLocal, localCfg, containerName(), ObjectSinkOptions{Encryption: encrypt.ModeAESCTR, Key: testKey}, nil)
	require.Error(t, err)
	_, err = NewObjectSink(KindS3, s3Config(t), containerName(), ObjectSinkOptions{Compression: compress.ModeUnknown}, nil)
	require.Error(t, err)
	_, err = NewObjectSink(KindS3, s3Config(t), containerName(), ObjectSinkOptions{Encryption: encrypt.ModeAESCTR}, nil)
	require.Error(t, err, "missing key")
}

var testKey = []byte("0123456789abcdef0123456789abcdef")
