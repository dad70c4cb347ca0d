package vendor

import (
	"context"
	"log"

	"github.com/indieinfra/mediadrop/media"
)

// NoopAdapter accepts every upload without storing anything.
type NoopAdapter struct{}

func (NoopAdapter) Describe() Capabilities {
	return Capabilities{
		Name:              "noop",
		Title:             "No-op",
		AcceptedMIMETypes: DefaultMIMETypes,
		SupportsProgress:  true,
		CredentialFields:  []CredentialField{},
	}
}

func (NoopAdapter) UploadFile(ctx context.Context, file *media.File, fileName string, creds Credentials, onProgress func(int), onSuccess func(*StoredFile), onError func(error)) CancelFunc {
	return Start(ctx, func(ctx context.Context, progress func(int)) (*StoredFile, error) {
		log.Println("Received no-op vendor upload request - dumping request information")
		log.Printf("Filename: %v", fileName)
		log.Printf("Type: %v", file.MIMEType)
		log.Printf("Size: %v", file.Size)

		return &StoredFile{
			Vendor:      "noop",
			Key:         fileName,
			URL:         "https://noop.example.org/" + fileName,
			Size:        file.Size,
			ContentType: file.MIMEType,
		}, nil
	}, onProgress, onSuccess, onError)
}

func (NoopAdapter) DeleteFile(ctx context.Context, stored *StoredFile, creds Credentials) error {
	log.Println("Received no-op vendor delete request - dumping request information")
	if stored != nil {
		log.Printf("Key: %v", stored.Key)
	}
	return nil
}
