package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	podcastsBucket = []byte("podcasts")
	episodesBucket = []byte("episodes")
)

// Store is the keyed record store backing the podcast model. Values are
// JSON blobs keyed by their numeric id; ids come from the bucket sequence.
type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{podcastsBucket, episodesBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Commit flushes outstanding writes to disk.
func (s *Store) Commit() error {
	return s.db.Sync()
}

// SavePodcast persists the podcast, assigning an id on first save.
func (s *Store) SavePodcast(podcast *Podcast) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(podcastsBucket)
		if podcast.ID == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			podcast.ID = int64(seq)
		}
		data, err := json.Marshal(podcast)
		if err != nil {
			return err
		}
		return b.Put(itob(podcast.ID), data)
	})
}

// LoadPodcasts returns all subscribed podcasts, sorted by title
// (case-insensitive handled by the caller's sort key).
func (s *Store) LoadPodcasts() ([]*Podcast, error) {
	var podcasts []*Podcast
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(podcastsBucket)
		return b.ForEach(func(_ []byte, v []byte) error {
			var podcast Podcast
			if err := json.Unmarshal(v, &podcast); err != nil {
				return err
			}
			podcasts = append(podcasts, &podcast)
			return nil
		})
	})
	sort.Slice(podcasts, func(i, j int) bool {
		return podcasts[i].ID < podcasts[j].ID
	})
	return podcasts, err
}

// SaveEpisode persists the episode, assigning an id on first save.
func (s *Store) SaveEpisode(episode *Episode) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(episodesBucket)
		if episode.ID == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			episode.ID = int64(seq)
		}
		data, err := json.Marshal(episode)
		if err != nil {
			return err
		}
		return b.Put(itob(episode.ID), data)
	})
}

// LoadEpisodes returns all episodes owned by the given podcast, DELETED
// rows included. Deleted episodes must stay in the collection so their
// GUIDs block re-admission on the next feed update.
func (s *Store) LoadEpisodes(podcastID int64) ([]*Episode, error) {
	var episodes []*Episode
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(episodesBucket)
		return b.ForEach(func(_ []byte, v []byte) error {
			var episode Episode
			if err := json.Unmarshal(v, &episode); err != nil {
				return err
			}
			if episode.PodcastID == podcastID {
				episodes = append(episodes, &episode)
			}
			return nil
		})
	})
	return episodes, err
}

// DeleteEpisode removes the episode row.
func (s *Store) DeleteEpisode(episode *Episode) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(episodesBucket).Delete(itob(episode.ID))
	})
}

// DeletePodcast removes the podcast row and all of its episode rows.
func (s *Store) DeletePodcast(podcast *Podcast) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(podcastsBucket).Delete(itob(podcast.ID)); err != nil {
			return err
		}

		b := tx.Bucket(episodesBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var episode Episode
			if err := json.Unmarshal(v, &episode); err != nil {
				continue
			}
			if episode.PodcastID == podcast.ID {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

func itob(id int64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(id))
	return key[:]
}
