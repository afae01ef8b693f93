package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to project. credentialsFile may be empty to use
// application default credentials.
func NewFirestoreStore(ctx context.Context, project string, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := firestore.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreStore{client: c}, nil
}

func (f *FirestoreStore) Close() error { return f.client.Close() }

func notFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (f *FirestoreStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return "", err
	}
	ref := f.client.Collection(coll).NewDoc()
	if _, err := ref.Create(ctx, f.toFirestore(fields)); err != nil {
		return "", fmt.Errorf("firestore create: %w", err)
	}
	return ref.ID, nil
}

func (f *FirestoreStore) Get(ctx context.Context, doc string) (map[string]any, error) {
	snap, err := f.client.Doc(doc).Get(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	out, _ := fromFirestore(snap.Data()).(map[string]any)
	return out, nil
}

func (f *FirestoreStore) GetField(ctx context.Context, doc string, name string) (any, bool, error) {
	snap, err := f.client.Doc(doc).Get(ctx)
	if err != nil {
		return nil, false, notFound(err)
	}
	v, ok := snap.Data()[name]
	if !ok {
		return nil, false, nil
	}
	return fromFirestore(v), true, nil
}

func (f *FirestoreStore) UpdateField(ctx context.Context, doc string, name string, value any) error {
	_, err := f.client.Doc(doc).Update(ctx, []firestore.Update{{FieldPath: firestore.FieldPath{name}, Value: f.toFirestore(value)}})
	if err != nil {
		return notFound(err)
	}
	return nil
}

// ListChildDocuments lists children in document id order. Firestore assigns
// random ids, so unlike the embedded backends this is not creation order.
func (f *FirestoreStore) ListChildDocuments(ctx context.Context, collection string) ([]string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return nil, err
	}
	it := f.client.Collection(coll).DocumentRefs(ctx)
	var out []string
	for {
		ref, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", coll, err)
		}
		out = append(out, Join(coll, ref.ID))
	}
	return out, nil
}

func (f *FirestoreStore) toFirestore(v any) any {
	switch x := v.(type) {
	case GeoPoint:
		return &latlng.LatLng{Latitude: x.Lat, Longitude: x.Lng}
	case Ref:
		return f.client.Doc(x.Path)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = f.toFirestore(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = f.toFirestore(e)
		}
		return out
	default:
		return v
	}
}

func fromFirestore(v any) any {
	switch x := v.(type) {
	case *latlng.LatLng:
		return GeoPoint{Lat: x.GetLatitude(), Lng: x.GetLongitude()}
	case *firestore.DocumentRef:
		return Ref{Path: relativePath(x.Path)}
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = fromFirestore(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromFirestore(e)
		}
		return out
	default:
		return v
	}
}

// relativePath strips the projects/{p}/databases/{d}/documents/ prefix.
func relativePath(full string) string {
	const marker = "/documents/"
	if i := strings.Index(full, marker); i >= 0 {
		return full[i+len(marker):]
	}
	return full
}
