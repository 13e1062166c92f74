package encrypt

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/graymeta/stow"

	"github.com/tarndt/flashbench/pkg/util/strms"
)

const (
	encryptMetaAlgoHeader = "x-flashbench-crypt-alg"
	encryptMetaIVHeader   = "x-flashbench-crypt-iv"
)

type encryptedContainer struct {
	stow.Container
	Mode
	key []byte
}

var _ stow.Container = (*encryptedContainer)(nil)

//NewEncryptedContainer wraps the provided container in transparent encryption
// and decryption. The underlying store must support item metadata.
func NewEncryptedContainer(container stow.Container, mode Mode, key []byte) stow.Container {
	return encryptedContainer{
		Container: container,
		Mode:      mode,
		key:       key,
	}
}

func (cont encryptedContainer) Item(id string) (stow.Item, error) {
	item, err := cont.Container.Item(id)
	if item != nil {
		item = encryptedItem{Item: item, key: cont.key}
	}
	return item, err
}

func (cont encryptedContainer) Items(prefix, cursor string, count int) ([]stow.Item, string, error) {
	items, cursor, err := cont.Container.Items(prefix, cursor, count)
	for i := range items {
		items[i] = encryptedItem{Item: items[i], key: cont.key}
	}
	return items, cursor, err
}

//Put encrypts as it uploads
func (cont encryptedContainer) Put(name string, rdr io.Reader, size int64, metadata map[string]interface{}) (stow.Item, error) {
	if cont.Mode == ModeIdentity {
		return cont.Container.Put(name, rdr, size, metadata)
	}

	pipeRdr, pipeWtr := io.Pipe()
	wtr, initVect, err := cont.NewWriter(pipeWtr, cont.key)
	if err != nil {
		return nil, fmt.Errorf("Could not create stream encryptor: %w", err)
	}

	go func() {
		if _, err := io.Copy(wtr, rdr); err != nil {
			pipeWtr.CloseWithError(fmt.Errorf("Copy failed during %s stream encryption: %w", cont.Mode, err))
			return
		}
		pipeWtr.Close()
	}()

	mdWithCrypt := make(map[string]interface{}, len(metadata)+2)
	for key, val := range metadata {
		mdWithCrypt[key] = val
	}
	mdWithCrypt[encryptMetaAlgoHeader] = cont.AlgoName()
	mdWithCrypt[encryptMetaIVHeader] = hex.EncodeToString(initVect)

	item, err := cont.Container.Put(name, pipeRdr, stow.SizeUnknown, mdWithCrypt)
	pipeRdr.Close()
	if err != nil {
		return nil, err
	}
	return encryptedItem{Item: item, key: cont.key}, nil
}

type encryptedItem struct {
	stow.Item
	key []byte
}

var _ stow.Item = (*encryptedItem)(nil)

//Open returns a stream of the item's decrypted contents
func (item encryptedItem) Open() (io.ReadCloser, error) {
	md, err := item.Metadata()
	if err != nil {
		return nil, fmt.Errorf("Opening item metadata to check for encryption failed: %w", err)
	}

	mode := ModeIdentity
	var initVect []byte
	if hdrAlgoVal, hdrExists := md[encryptMetaAlgoHeader]; hdrExists {
		hdrAlgoStr, isString := hdrAlgoVal.(string)
		if !isString {
			return nil, fmt.Errorf("Item metadata indicated encryption but value (#%v) was a %T not a string", hdrAlgoVal, hdrAlgoVal)
		}

		if mode = ModeFromName(hdrAlgoStr); mode == ModeUnknown {
			return nil, fmt.Errorf("Item metadata specified unsupported encryption mode: %q", hdrAlgoStr)
		}

		if hdrInitVecVal, hdrExists := md[encryptMetaIVHeader]; !hdrExists {
			return nil, fmt.Errorf("Item metadata indicated %s encryption but no IV (initialization vector) was recorded", mode)
		} else if hdrInitVecStr, isString := hdrInitVecVal.(string); !isString {
			return nil, fmt.Errorf("Item metadata indicated %s encryption but the IV (#%v) was a %T not a string", mode, hdrInitVecVal, hdrInitVecVal)
		} else if initVect, err = hex.DecodeString(hdrInitVecStr); err != nil {
			return nil, fmt.Errorf("Item metadata IV (initialization vector) %q was not parseable as base16 value: %w", hdrInitVecStr, err)
		}
	}

	itemRdr, err := item.Item.Open()
	if mode == ModeIdentity || err != nil {
		return itemRdr, err
	}
	decryptRdr, err := mode.NewReader(itemRdr, item.key, initVect)
	if err != nil {
		itemRdr.Close()
		return nil, fmt.Errorf("Item decryptor could not be created: %w", err)
	}
	return strms.NewReadFirstCloseList(decryptRdr, itemRdr), nil
}
