package migrations

// DialectTemplate is used as the templating control for differing SQL syntax between our supported databases
type DialectTemplate struct {
	Binary            string
	IntegerPrimaryKey string
}

// MigrationSet provides a set of migrations that can be applied to a database.
type MigrationSet []MigrationData

// MigrationData provides the data for a single migration, including Up and Down SQL.
// Templated values are supported and will be substituted for database-specific values
// before the migrations are applied.
type MigrationData struct {
	SequenceNumber int64
	Name           string
	UpSQL          string
	DownSQL        string
}

// BuildItServerMigrations is the set of migrations to set up the database for the BuildIt server.
var BuildItServerMigrations = MigrationSet{
	{
		SequenceNumber: 1,
		Name:           "create_users",
		UpSQL: `CREATE TABLE IF NOT EXISTS users
				(
					user_id {{ .IntegerPrimaryKey }},
					user_created_at timestamp without time zone NOT NULL,
					user_chat_id text,
					user_forge_login text,
					user_forge_id integer
				);
				CREATE UNIQUE INDEX IF NOT EXISTS users_chat_id_unique_index ON users(user_chat_id)
				WHERE user_chat_id IS NOT NULL;`,
		DownSQL: `DROP INDEX users_chat_id_unique_index;
				  DROP TABLE users;`,
	},
	{
		SequenceNumber: 2,
		Name:           "create_pipelines",
		UpSQL: `CREATE TABLE IF NOT EXISTS pipelines
				(
					pipeline_id {{ .IntegerPrimaryKey }},
					pipeline_created_at timestamp without time zone NOT NULL,
					pipeline_packages text NOT NULL,
					pipeline_archs text NOT NULL,
					pipeline_git_branch text NOT NULL,
					pipeline_git_sha text NOT NULL,
					pipeline_github_pr integer,
					pipeline_source text NOT NULL,
					pipeline_creator_user_id integer REFERENCES users (user_id) ON UPDATE NO ACTION ON DELETE NO ACTION,
					pipeline_creator_login text,
					pipeline_creator_avatar_url text
				);
				CREATE INDEX IF NOT EXISTS pipelines_created_at_index ON pipelines(pipeline_created_at DESC);`,
		DownSQL: `DROP INDEX pipelines_created_at_index;
				  DROP TABLE pipelines;`,
	},
	{
		SequenceNumber: 3,
		Name:           "create_workers",
		UpSQL: `CREATE TABLE IF NOT EXISTS workers
				(
					worker_id {{ .IntegerPrimaryKey }},
					worker_created_at timestamp without time zone NOT NULL,
					worker_hostname text NOT NULL,
					worker_arch text NOT NULL,
					worker_logical_cores integer NOT NULL DEFAULT 0,
					worker_memory_bytes bigint NOT NULL DEFAULT 0,
					worker_disk_free_space_bytes bigint NOT NULL DEFAULT 0,
					worker_source_rev text NOT NULL DEFAULT '',
					worker_performance integer,
					worker_internet_connectivity bool NOT NULL DEFAULT FALSE,
					worker_last_heartbeat_at timestamp without time zone NOT NULL,
					worker_running_job_id integer
				);
				CREATE UNIQUE INDEX IF NOT EXISTS workers_hostname_arch_unique_index ON workers(
					worker_hostname,
					worker_arch);
				CREATE INDEX IF NOT EXISTS workers_last_heartbeat_at_index ON workers(worker_last_heartbeat_at);`,
		DownSQL: `DROP INDEX workers_hostname_arch_unique_index;
				  DROP INDEX workers_last_heartbeat_at_index;
				  DROP TABLE workers;`,
	},
	{
		SequenceNumber: 4,
		Name:           "create_jobs",
		UpSQL: `CREATE TABLE IF NOT EXISTS jobs
				(
					job_id {{ .IntegerPrimaryKey }},
					job_created_at timestamp without time zone NOT NULL,
					job_pipeline_id integer NOT NULL REFERENCES pipelines (pipeline_id) ON UPDATE NO ACTION ON DELETE NO ACTION,
					job_packages text NOT NULL,
					job_arch text NOT NULL,
					job_status text NOT NULL,
					job_require_min_cores integer,
					job_require_min_total_memory_bytes bigint,
					job_require_min_memory_per_core_bytes bigint,
					job_require_min_free_disk_bytes bigint,
					job_assigned_worker_id integer REFERENCES workers (worker_id) ON UPDATE NO ACTION ON DELETE NO ACTION,
					job_assign_time timestamp without time zone,
					job_finish_time timestamp without time zone,
					job_build_success bool,
					job_upload_success bool,
					job_successful_packages text,
					job_failed_package text,
					job_skipped_packages text,
					job_log_url text,
					job_error_message text,
					job_elapsed_secs integer,
					job_built_by_worker_id integer REFERENCES workers (worker_id) ON UPDATE NO ACTION ON DELETE NO ACTION
				);
				CREATE INDEX IF NOT EXISTS jobs_pipeline_id_index ON jobs(job_pipeline_id);
				CREATE INDEX IF NOT EXISTS jobs_status_arch_index ON jobs(job_status, job_arch);
				CREATE INDEX IF NOT EXISTS jobs_assigned_worker_id_index ON jobs(job_assigned_worker_id)
				WHERE job_assigned_worker_id IS NOT NULL;`,
		DownSQL: `DROP INDEX jobs_pipeline_id_index;
				  DROP INDEX jobs_status_arch_index;
				  DROP INDEX jobs_assigned_worker_id_index;
				  DROP TABLE jobs;`,
	},
}
