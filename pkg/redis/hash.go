package redis

import "context"

// HGet returns redis.Nil for a missing field.
func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	store, err := c.conn()
	if err != nil {
		return "", err
	}
	return store.HGet(ctx, key, field).Result()
}

// HGetAll yields an empty map for a missing key.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	store, err := c.conn()
	if err != nil {
		return nil, err
	}
	return store.HGetAll(ctx, key).Result()
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	store, err := c.conn()
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	return store.HDel(ctx, key, fields...).Err()
}

func (c *Client) HExists(ctx context.Context, key, field string) (bool, error) {
	store, err := c.conn()
	if err != nil {
		return false, err
	}
	return store.HExists(ctx, key, field).Result()
}
