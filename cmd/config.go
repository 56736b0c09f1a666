package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(createConfigCommand())
}

// createConfigCommand creates the config subcommand for generating a
// sample configuration file
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the --config
flag. Redirect the output to a file and customize it for your host:

  serverbackup config > /etc/serverbackup.conf`,
		Run: func(cmd *cobra.Command, args []string) {
			sampleConfig := `{
  "name": "myhost",
  "backup_root": "/var/backups",
  "databases": [
    {
      "name": "appdb",
      "user": "backup",
      "password": "",
      "host": "127.0.0.1",
      "port": 3306
    }
  ],
  "directories": [
    "/etc/nginx",
    "/var/www"
  ],
  "compression": {
    "algorithm": "GZIP",
    "level": 6
  },
  "retention": {
    "max_local_copies": 3,
    "max_age_days": 0
  },
  "encryption": {
    "password": ""
  },
  "storage": {
    "provider": "S3",
    "s3": {
      "bucket": "myhost-backups",
      "region": "us-east-1",
      "access_key": "",
      "secret_key": ""
    }
  },
  "include_timestamp_in_filename": true,
  "keep_encrypted_after_upload": false,
  "lock_file": ""
}
`
			fmt.Print(sampleConfig)
		},
	}
}
