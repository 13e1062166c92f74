package report

import (
	"fmt"

	"github.com/graymeta/stow"

	//Load drivers
	"github.com/graymeta/stow/azure"  //Azure storage
	"github.com/graymeta/stow/b2"     //Backblaze storage
	"github.com/graymeta/stow/google" //Google storage
	"github.com/graymeta/stow/local"  //local storage
	"github.com/graymeta/stow/oracle" //oracle storage
	"github.com/graymeta/stow/s3"     //s3 storage
	"github.com/graymeta/stow/sftp"   //sftp storage
	"github.com/graymeta/stow/swift"  //swift storage
)

//The list of all the known object store (stow.Location) kinds reports can be
// uploaded to without having to import the driver package for each.
const (
	KindAzure               = azure.Kind
	KindBackBlazeB2         = b2.Kind
	KindGoogleCloudStorage  = google.Kind
	KindLocal               = local.Kind
	KindS3                  = s3.Kind
	KindOracleObjectStorage = oracle.Kind
	KindSFTP                = sftp.Kind
	KindSwift               = swift.Kind
)

//StoreKinds lists every supported object store kind
func StoreKinds() []string {
	return []string{KindAzure, KindBackBlazeB2, KindGoogleCloudStorage, KindLocal, KindS3, KindOracleObjectStorage, KindSFTP, KindSwift}
}

//SupportsMetaData returns false if the provided object store kind is known to
// not support metadata
func SupportsMetaData(kind string) bool {
	switch kind {
	case KindLocal, KindSFTP:
		return false
	}
	return true
}

//NewStore validates config and dials stow storage. See stow.Dial for more info
func NewStore(kind string, config stow.Config) (stow.Location, error) {
	if err := stow.Validate(kind, config); err != nil {
		return nil, fmt.Errorf("Could not validate %s store config: %w", kind, err)
	}
	loc, err := stow.Dial(kind, config)
	if err != nil {
		return nil, fmt.Errorf("Could not dial %s store: %w", kind, err)
	}
	return loc, nil
}

func describeContainer(container stow.Container) string {
	return fmt.Sprintf("remote container %q (%q)", container.ID(), container.Name())
}

func describeItem(item stow.Item) string {
	return fmt.Sprintf("remote object %q (%q at %q)", item.ID(), item.Name(), item.URL())
}
