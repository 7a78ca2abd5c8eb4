package services

import (
	"log"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
)

// ImageResolver turns a stored image reference into a URL clients can load.
type ImageResolver interface {
	URL(ref string) string
}

type LocalImageResolver struct {
	BasePath string
}

func (r LocalImageResolver) URL(ref string) string {
	if ref == "" {
		return ""
	}
	if isAbsoluteURL(ref) {
		return ref
	}
	return strings.TrimRight(r.BasePath, "/") + "/" + strings.TrimLeft(ref, "/")
}

// CloudinaryImageResolver builds delivery URLs for question illustrations
// stored under their Cloudinary public id.
type CloudinaryImageResolver struct {
	deliveryURL func(ref string) (string, error)
	fallback    ImageResolver
}

func NewCloudinaryImageResolver(cloudinaryURL string, fallback ImageResolver) (*CloudinaryImageResolver, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &CloudinaryImageResolver{deliveryURL: imageURLFor(cld), fallback: fallback}, nil
}

func imageURLFor(cld *cloudinary.Cloudinary) func(ref string) (string, error) {
	return func(ref string) (string, error) {
		img, err := cld.Image(ref)
		if err != nil {
			return "", err
		}
		return img.String()
	}
}

func (r *CloudinaryImageResolver) URL(ref string) string {
	if ref == "" {
		return ""
	}
	if isAbsoluteURL(ref) {
		return ref
	}
	u, err := r.deliveryURL(ref)
	if err == nil {
		return u
	}
	log.Printf("image: cloudinary url for %q failed, using fallback: %v", ref, err)
	return r.fallback.URL(ref)
}

// NewImageResolver picks Cloudinary when configured, local paths otherwise.
func NewImageResolver(cloudinaryURL, basePath string) ImageResolver {
	local := LocalImageResolver{BasePath: basePath}
	if cloudinaryURL == "" {
		return local
	}
	r, err := NewCloudinaryImageResolver(cloudinaryURL, local)
	if err != nil {
		log.Printf("Warning: invalid CLOUDINARY_URL, serving images from %s: %v", basePath, err)
		return local
	}
	return r
}

func isAbsoluteURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func resolveImage(r ImageResolver, ref *string) *string {
	if r == nil || ref == nil || *ref == "" {
		return nil
	}
	u := r.URL(*ref)
	return &u
}
