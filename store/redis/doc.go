// Package redis provides Redis-backed storage for LangGraph Go checkpoints and state.
//
// This package implements fast, in-memory checkpoint storage using Redis, ideal for
// scenarios requiring low-latency access to checkpoints and supporting distributed
// graph executions across multiple processes or servers.
//
// # Key Features
//
//   - High-performance checkpoint storage with Redis
//   - Support for TTL (time-to-live) automatic expiration
//   - Save writes the checkpoint and its execution index in one pipeline
//   - Configurable key prefixes for multi-tenancy
//   - JSON serialization of complex state objects
//   - Connection pooling from the go-redis client (single-node client only;
//     no cluster or sentinel constructor)
//
// # Basic Usage
//
//	import (
//		"context"
//		"github.com/nahisaho/YAGOKORO-sub003/store/redis"
//	)
//
//	// Create a Redis checkpoint store
//	store := redis.NewRedisCheckpointStore(redis.RedisOptions{
//		Addr:     "localhost:6379",
//		Password: "yourpassword",
//		DB:       0,                    // Redis database number
//		Prefix:   "langgraph:",         // Optional key prefix
//		TTL:      24 * time.Hour,       // Optional TTL for checkpoints
//	})
//
//	// Use with a graph
//	g := graph.NewCheckpointableStateGraph()
//	// ... configure graph ...
//
//	// Enable checkpointing
//	g.SetCheckpointConfig(graph.CheckpointConfig{
//		Store: store,
//	})
//
//	runnable, err := g.CompileCheckpointable()
//
// # Configuration
//
// ## Connection Options
//
//	// Single Redis instance
//	store := redis.NewRedisCheckpointStore(redis.RedisOptions{
//		Addr:     "localhost:6379",
//		Password: "",
//		DB:       0,
//	})
//
//	// With authentication
//	store := redis.NewRedisCheckpointStore(redis.RedisOptions{
//		Addr:     "redis.example.com:6379",
//		Password: "your-redis-password",
//		DB:       1,
//	})
//
// The client always connects over TCP; Addr is a host:port.
//
// ## TTL Configuration
//
//	// Set default TTL for all checkpoints (24 hours)
//	store := redis.NewRedisCheckpointStore(redis.RedisOptions{
//		Addr: "localhost:6379",
//		TTL:  24 * time.Hour,
//	})
//
//	// No expiration (persistent)
//	store := redis.NewRedisCheckpointStore(redis.RedisOptions{
//		Addr: "localhost:6379",
//		TTL:  0,
//	})
//
// # Key Management
//
//	// Checkpoints are stored as JSON strings
//	// Format: {prefix}checkpoint:{checkpoint_id}
//	// Example: "langgraph:checkpoint:abc123"
//
//	// Each execution has a set of its checkpoint IDs, filled by Save when
//	// checkpoint.Metadata["execution_id"] is a non-empty string
//	// Format: {prefix}execution:{execution_id}:checkpoints
//	// Example: "langgraph:execution:xyz789:checkpoints"
//
//	// List all checkpoints for an execution (reads that set)
//	checkpoints, err := store.List(ctx, "xyz789")
//
// The TTL from RedisOptions is applied to every checkpoint key and, when it
// is above zero, to the execution set on each Save. There is no per-checkpoint
// TTL, no batch API, no change notifications and no operation metrics.
//
// # Error Handling
//
// The store does not retry. A caller-side retry loop:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	for i := 0; i < 3; i++ {
//		err := store.Save(ctx, checkpoint)
//		if err == nil {
//			break
//		}
//		if i == 2 {
//			return err
//		}
//		time.Sleep(time.Second * time.Duration(i+1))
//	}
//
// # Integration Examples
//
// ## With Distributed Execution
//
//	// Multiple processes sharing the same Redis store
//	store := redis.NewRedisCheckpointStore(redis.RedisOptions{
//		Addr:   "redis-cluster:6379",
//		Prefix: "distributed-langgraph:",
//		TTL:    6 * time.Hour, // Checkpoints persist for 6 hours
//	})
//
//	// Process 1 saves checkpoints while it runs
//	g1.SetCheckpointConfig(graph.CheckpointConfig{Store: store})
//	runnable1, _ := g1.CompileCheckpointable()
//	result, _ := runnable1.Invoke(ctx, input)
//
//	// Process 2 reads the same execution's checkpoints
//	checkpoints, _ := store.List(ctx, executionID)
//	cp, _ := store.Load(ctx, checkpoints[0].ID)
//
// ## With Session Affinity
//
//	// Store checkpoints per user session
//	func getUserStore(userID string) graph.CheckpointStore {
//		return redis.NewRedisCheckpointStore(redis.RedisOptions{
//			Addr:   "localhost:6379",
//			Prefix: fmt.Sprintf("user:%s:langgraph:", userID),
//			TTL:    2 * time.Hour, // Session timeout
//		})
//	}
//
//	userStore := getUserStore("user-123")
//
// # Best Practices
//
//  1. Use meaningful key prefixes for organization
//  2. Set appropriate TTL to prevent memory bloat
//  3. Use connection pooling in production
//  4. Implement proper error handling with retries
//  5. Monitor Redis memory usage
//  6. Use Redis Cluster for high availability
//  7. Enable persistence for critical data
//  8. Use pipelining for batch operations
//  9. Consider compression for large state objects
//  10. Test failover scenarios
//
// # Security Considerations
//
//   - Enable Redis AUTH in production
//   - Use TLS/SSL for network connections
//   - Implement proper network isolation
//   - Use Redis ACLs for fine-grained access control
//   - Encrypt sensitive data before storage
//   - Disable dangerous commands (CONFIG, FLUSHDB)
//   - Set up proper firewalls
//   - Monitor for suspicious activity
//
// # Docker Integration
//
// Use with Docker Compose:
//
// ```yaml
// version: '3.8'
// services:
//
//	langgraph:
//	  image: your-app
//	  environment:
//	    - REDIS_ADDR=redis:6379
//	    - REDIS_PASSWORD=yourpassword
//	  depends_on:
//	    - redis
//
//	redis:
//	  image: redis:7-alpine
//	  command: redis-server --requirepass yourpassword
//	  ports:
//	    - "6379:6379"
//	  volumes:
//	    - redis_data:/data
//
//	redis-commander:
//	  image: rediscommander/redis-commander:latest
//	  environment:
//	    - REDIS_HOSTS=local:redis:6379:0:yourpassword
//	  ports:
//	    - "8081:8081"
//
// volumes:
//
//	redis_data:
//
// ```
//
// # Comparison with Other Stores
//
// | Feature              | Redis Store | PostgreSQL Store | SQLite Store |
// |---------------------|-------------|------------------|-------------|
// | Performance          | Very High   | High             | Medium      |
// | Persistence          | Optional    | Yes              | Yes         |
// | Memory Usage         | High        | Low              | Low         |
// | Scaling              | Horizontal  | Vertical         | Single      |
// | Query Capabilities   | Basic       | Advanced         | Basic       |
// | Transactions        | Limited     | Full             | Full        |
// | TTL Support         | Native      | Manual           | Manual      |
// | Best For           | High-speed  | Complex queries  | Simple apps |
package redis
